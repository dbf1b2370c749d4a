package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Print signer addresses and their balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return accounts(cmd.Context(), os.Stdout, network)
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "data source name, overrides `deployer.network`")
	return cmd
}

func accounts(ctx context.Context, out io.Writer, network string) error {
	a, err := newApp(ctx, network)
	if err != nil {
		return err
	}
	defer a.Close()

	signers, err := a.signers()
	if err != nil {
		return err
	}

	return printAccounts(ctx, out, a.client, signers)
}

// printAccounts - one line per signer, the deployer first
func printAccounts(ctx context.Context, out io.Writer, client *chain.Client, signers []*chain.Signer) error {
	for i, signer := range signers {
		balance, err := client.Balance(ctx, signer.Address)
		if err != nil {
			return err
		}
		role := "signer"
		if i == 0 {
			role = "deployer"
		}
		fmt.Fprintf(out, "%d\t%s\t%s ETH\t%s\n", i, signer.Address.Hex(), chain.ToEther(balance).String(), role)
	}
	return nil
}
