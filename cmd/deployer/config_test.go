package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/deployer"
	"github.com/dipdup-net/go-lib/config"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/deployer.yml")
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, config.DBKindSqlite, cfg.Database.Kind)
	require.Equal(t, "localhost", cfg.Deployer.Network)
	require.EqualValues(t, 2, cfg.Deployer.Confirmations)
	require.Equal(t, 250*time.Millisecond, cfg.Deployer.pollInterval())
	require.Equal(t, time.Minute, cfg.Deployer.cacheTTL())

	signers, err := chain.LoadSigners(cfg.Deployer.Accounts, nil)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", signers[0].Address.Hex())

	plan := cfg.Deployer.Plan()
	require.NoError(t, plan.Validate())
	require.Equal(t, []deployer.Step{
		{Contract: "SpaceRoomManager", Args: []string{"$signer[0]"}},
		{ID: "Voting", Contract: "contracts/VotingManager.sol:VotingManager", Args: []string{"$SpaceRoomManager"}},
	}, plan.Steps)

	ds, err := cfg.DataSource("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8545", ds.URL)
}

func TestConfig_DataSource(t *testing.T) {
	cfg := Config{
		Config: config.Config{
			DataSources: map[string]config.DataSource{
				"localhost": {URL: "http://127.0.0.1:8545"},
				"empty":     {},
			},
		},
		Deployer: Deployer{Network: "localhost"},
	}

	ds, err := cfg.DataSource("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8545", ds.URL)

	_, err = cfg.DataSource("sepolia")
	require.ErrorContains(t, err, "unknown network")

	_, err = cfg.DataSource("empty")
	require.ErrorContains(t, err, "empty url")
}

func TestDeployer_DefaultPlan(t *testing.T) {
	require.Equal(t, deployer.DefaultPlan(), Deployer{}.Plan())
}

func TestPrintStatus(t *testing.T) {
	hasCode := true
	rows := []statusRow{
		{
			ID:          1,
			Name:        "SpaceRoomManager",
			Status:      "deployed",
			Address:     "0x5fbdb2315678afecb367f032d93f642f64180aa3",
			BlockNumber: 1,
			Args:        []string{"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"},
			Cost:        "0.0004",
			HasCode:     &hasCode,
		}, {
			ID:     2,
			Name:   "VotingManager",
			Status: "failed",
			Args:   []string{},
			Cost:   "0",
			Error:  "execution reverted",
		},
	}

	var table bytes.Buffer
	require.NoError(t, printStatus(&table, rows, false))
	lines := bytes.Split(bytes.TrimSpace(table.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	require.Contains(t, string(lines[1]), "0x5fbdb2315678afecb367f032d93f642f64180aa3")
	require.Contains(t, string(lines[1]), "ok")
	require.Contains(t, string(lines[2]), "execution reverted")

	var raw bytes.Buffer
	require.NoError(t, printStatus(&raw, rows, true))
	var decoded []statusRow
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	require.Equal(t, rows, decoded)
}

func TestSetupLogger(t *testing.T) {
	require.NoError(t, setupLogger("warn"))
	require.Error(t, setupLogger("verbose"))
}
