package sqldb

import (
	"context"
	"database/sql"

	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Transaction - groups registry writes of a deploy run
type Transaction struct {
	tx bun.Tx

	Deployments storage.IDeployment
}

// BeginTransaction -
func BeginTransaction(ctx context.Context, s Storage) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		tx:          tx,
		Deployments: NewDeployment(tx),
	}, nil
}

// Flush - commits transaction
func (t Transaction) Flush(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback -
func (t Transaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Close - rolls back if the transaction was not flushed
func (t Transaction) Close(ctx context.Context) error {
	return t.Rollback(ctx)
}

// HandleError - rolls back and returns the original error
func (t Transaction) HandleError(ctx context.Context, err error) error {
	if rollbackErr := t.Rollback(ctx); rollbackErr != nil {
		return errors.Wrap(err, rollbackErr.Error())
	}
	return err
}

// Forget - removes every record of the contract on the network. Used by `deploy --reset`.
func (t Transaction) Forget(ctx context.Context, network, name string) (int64, error) {
	res, err := t.tx.NewDelete().
		Model((*storage.Deployment)(nil)).
		Where("network = ?", network).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
