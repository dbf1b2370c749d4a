package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dipdup-io/spaceroom-deployer/internal/storage/sqldb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newForgetCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "forget NAME...",
		Short: "Delete registry history of contracts on the network",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if network == "" {
				network = cfg.Deployer.Network
			}

			registry, err := sqldb.Create(cmd.Context(), cfg.Database)
			if err != nil {
				return errors.Wrap(err, "open registry")
			}
			defer func() {
				if err := registry.Close(); err != nil {
					log.Err(err).Msg("closing database connection")
				}
			}()

			return forget(cmd.Context(), os.Stdout, registry, network, args)
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "data source name, overrides `deployer.network`")
	return cmd
}

// forget - all names are deleted in one transaction or none is
func forget(ctx context.Context, out io.Writer, registry sqldb.Storage, network string, names []string) error {
	tx, err := sqldb.BeginTransaction(ctx, registry)
	if err != nil {
		return err
	}
	defer tx.Close(ctx)

	counts := make([]int64, len(names))
	for i, name := range names {
		counts[i], err = tx.Forget(ctx, network, name)
		if err != nil {
			return tx.HandleError(ctx, errors.Wrapf(err, "forget %s", name))
		}
	}
	if err := tx.Flush(ctx); err != nil {
		return err
	}

	for i, name := range names {
		fmt.Fprintf(out, "%s: %d records forgotten on %s\n", name, counts[i], network)
	}
	return nil
}
