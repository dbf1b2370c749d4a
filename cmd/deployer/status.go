package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/deployer"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var (
		network string
		runID   string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List recorded deployments and check their code on chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(cmd.Context(), os.Stdout, network, runID, asJSON)
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "data source name, overrides `deployer.network`")
	cmd.Flags().StringVar(&runID, "run", "", "show only deployments of the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type statusRow struct {
	ID          uint64   `json:"id"`
	Run         string   `json:"run"`
	Network     string   `json:"network"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Address     string   `json:"address,omitempty"`
	TxHash      string   `json:"tx_hash,omitempty"`
	BlockNumber uint64   `json:"block_number,omitempty"`
	Args        []string `json:"args"`
	Cost        string   `json:"cost"`
	HasCode     *bool    `json:"has_code,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func status(ctx context.Context, out io.Writer, network, runID string, asJSON bool) error {
	a, err := newApp(ctx, network, withRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := collectStatus(ctx, a.client, a.registry.Deployments, a.network, runID, cfg.Deployer.VerifyWorkers)
	if err != nil {
		return err
	}
	return printStatus(out, rows, asJSON)
}

// collectStatus - registry rows of the network or of a single run, checked against the chain of the network
func collectStatus(ctx context.Context, client *chain.Client, registry storage.IDeployment, network, runID string, workers int) ([]statusRow, error) {
	var (
		deployments []storage.Deployment
		err         error
	)
	if runID != "" {
		deployments, err = registry.ByRun(ctx, runID)
		if err == nil {
			err = sameNetwork(deployments, network)
		}
	} else {
		deployments, err = registry.List(ctx, network)
	}
	if err != nil {
		return nil, err
	}

	verifications := deployer.NewVerifier(client, workers).Verify(ctx, deployments)

	rows := make([]statusRow, len(verifications))
	for i, v := range verifications {
		rows[i] = statusRow{
			ID:          v.Deployment.ID,
			Run:         v.Deployment.RunID,
			Network:     v.Deployment.Network,
			Name:        v.Deployment.Name,
			Status:      string(v.Deployment.Status),
			Address:     v.Deployment.Address,
			TxHash:      v.Deployment.TxHash,
			BlockNumber: v.Deployment.BlockNumber,
			Args:        v.Deployment.ConstructorArgs,
			Cost:        v.Deployment.Cost.String(),
		}
		if v.Checked && v.Err == nil {
			hasCode := v.HasCode
			rows[i].HasCode = &hasCode
		}
		switch {
		case v.Err != nil:
			rows[i].Error = v.Err.Error()
		case v.Deployment.Error != nil:
			rows[i].Error = *v.Deployment.Error
		}
	}
	return rows, nil
}

// sameNetwork - code of a run can only be checked on the network it was recorded on
func sameNetwork(deployments []storage.Deployment, network string) error {
	for i := range deployments {
		if deployments[i].Network != network {
			return errors.Errorf("run %s was recorded on %q, not on %q: pass `--network %s`",
				deployments[i].RunID, deployments[i].Network, network, deployments[i].Network)
		}
	}
	return nil
}

func printStatus(out io.Writer, rows []statusRow, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tADDRESS\tBLOCK\tCOST\tCODE\tERROR")
	for _, row := range rows {
		code := "-"
		if row.HasCode != nil {
			code = "missing"
			if *row.HasCode {
				code = "ok"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			row.ID, row.Name, row.Status, row.Address, row.BlockNumber, row.Cost, code, row.Error)
	}
	return w.Flush()
}
