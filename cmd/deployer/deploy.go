package main

import (
	"context"
	"os"

	"github.com/dipdup-io/spaceroom-deployer/internal/deployer"
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var (
		reset   bool
		network string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy configured contracts and print their addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deploy(cmd.Context(), network, reset)
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "ignore earlier deployments and deploy everything again, history is kept")
	cmd.Flags().StringVarP(&network, "network", "n", "", "data source name, overrides `deployer.network`")
	return cmd
}

func deploy(ctx context.Context, network string, reset bool) error {
	plan := cfg.Deployer.Plan()
	if err := plan.Validate(); err != nil {
		return err
	}

	a, err := newApp(ctx, network, withRegistry(), withArtifacts())
	if err != nil {
		return err
	}
	defer a.Close()

	signers, err := a.signers()
	if err != nil {
		return err
	}

	d, err := deployer.New(a.client, a.store, signers,
		deployer.WithRegistry(a.registry.Deployments),
		deployer.WithNetwork(a.network),
		deployer.WithConfirmations(cfg.Deployer.Confirmations),
		deployer.WithReset(reset),
		deployer.WithOutput(os.Stdout),
	)
	if err != nil {
		return err
	}

	_, err = d.Run(ctx, plan)
	return err
}
