package main

import (
	"time"

	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/deployer"
	"github.com/dipdup-net/go-lib/config"
	"github.com/pkg/errors"
)

// Config -
type Config struct {
	config.Config `yaml:",inline"`
	Deployer      Deployer `yaml:"deployer"`
	LogLevel      string   `yaml:"log_level" validate:"omitempty,oneof=debug trace info warn error fatal panic"`
}

// Substitute -
func (c *Config) Substitute() error {
	if err := c.Config.Substitute(); err != nil {
		return err
	}
	return nil
}

// Load -
func Load(filename string) (cfg Config, err error) {
	err = config.Parse(filename, &cfg)
	return
}

// Deployer -
type Deployer struct {
	Network            string               `yaml:"network" validate:"required"`
	Artifacts          string               `yaml:"artifacts" validate:"required"`
	Confirmations      uint64               `yaml:"confirmations" validate:"omitempty,min=1"`
	PollInterval       uint64               `yaml:"poll_interval" validate:"omitempty,min=1"`
	GasLimit           uint64               `yaml:"gas_limit" validate:"omitempty,min=21000"`
	GasPriceMultiplier float64              `yaml:"gas_price_multiplier" validate:"omitempty,gte=1"`
	CacheTTL           uint64               `yaml:"cache_ttl" validate:"omitempty,min=1"`
	VerifyWorkers      int                  `yaml:"verify_workers" validate:"omitempty,min=1,max=64"`
	Accounts           chain.AccountsConfig `yaml:"accounts"`
	Contracts          []deployer.Step      `yaml:"contracts" validate:"omitempty,dive"`
}

// Plan - configured contracts or the default SpaceRoomManager and VotingManager pair
func (d Deployer) Plan() deployer.Plan {
	if len(d.Contracts) == 0 {
		return deployer.DefaultPlan()
	}
	return deployer.Plan{Steps: d.Contracts}
}

// DataSource - node endpoint of the network
func (c Config) DataSource(network string) (config.DataSource, error) {
	if network == "" {
		network = c.Deployer.Network
	}
	ds, ok := c.DataSources[network]
	if !ok {
		return ds, errors.Errorf("unknown network %q: add it to `datasources`", network)
	}
	if ds.URL == "" {
		return ds, errors.Errorf("empty url of network %q", network)
	}
	return ds, nil
}

func (d Deployer) pollInterval() time.Duration {
	return time.Duration(d.PollInterval) * time.Millisecond
}

func (d Deployer) cacheTTL() time.Duration {
	return time.Duration(d.CacheTTL) * time.Second
}
