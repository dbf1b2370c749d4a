package main

import (
	"context"

	"github.com/dipdup-io/spaceroom-deployer/internal/artifact"
	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage/sqldb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app - connections shared by the commands
type app struct {
	network  string
	client   *chain.Client
	registry *sqldb.Storage
	store    *artifact.Store
}

type appOption func(*appOptions)

type appOptions struct {
	registry bool
	store    bool
}

func withRegistry() appOption {
	return func(o *appOptions) {
		o.registry = true
	}
}

func withArtifacts() appOption {
	return func(o *appOptions) {
		o.store = true
	}
}

func newApp(ctx context.Context, network string, opts ...appOption) (*app, error) {
	var options appOptions
	for i := range opts {
		opts[i](&options)
	}

	if network == "" {
		network = cfg.Deployer.Network
	}
	ds, err := cfg.DataSource(network)
	if err != nil {
		return nil, err
	}

	a := &app{network: network}
	a.client, err = chain.Dial(ctx, ds,
		chain.WithPollInterval(cfg.Deployer.pollInterval()),
		chain.WithGasLimit(cfg.Deployer.GasLimit),
		chain.WithGasPriceMultiplier(cfg.Deployer.GasPriceMultiplier),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", network)
	}
	log.Info().Str("network", network).Stringer("chain_id", a.client.ChainID()).Msg("connected")

	if options.registry {
		registry, err := sqldb.Create(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "open registry")
		}
		a.registry = &registry
	}

	if options.store {
		a.store = artifact.NewStore(cfg.Deployer.Artifacts, artifact.WithCacheTTL(cfg.Deployer.cacheTTL()))
	}
	return a, nil
}

func (a *app) signers() ([]*chain.Signer, error) {
	return chain.LoadSigners(cfg.Deployer.Accounts, chain.TerminalPassword)
}

// Close -
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Err(err).Msg("closing artifact store")
		}
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			log.Err(err).Msg("closing database connection")
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			log.Err(err).Msg("closing node connection")
		}
	}
}
