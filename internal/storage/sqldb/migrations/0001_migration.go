package migrations

import (
	"context"

	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

func init() {
	DbMigrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		count, err := LowerHexColumns(ctx, db)
		if err != nil {
			return err
		}
		log.Info().
			Int64("updated deployments", count).
			Msg("migration applied")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		return nil
	})
}

// LowerHexColumns - rewrites address, deployer, tx hash and bytecode hash as lower-case hex.
// The deployer writes lower-case only, rows inserted by other tools (Hardhat prints EIP-55 checksums) are normalized.
func LowerHexColumns(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewUpdate().
		Model((*storage.Deployment)(nil)).
		Set("address = lower(address)").
		Set("deployer = lower(deployer)").
		Set("tx_hash = lower(tx_hash)").
		Set("bytecode_hash = lower(bytecode_hash)").
		Where("address <> lower(address) OR deployer <> lower(deployer) OR tx_hash <> lower(tx_hash) OR bytecode_hash <> lower(bytecode_hash)").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
