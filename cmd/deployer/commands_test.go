package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dipdup-io/spaceroom-deployer/internal/artifact"
	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/deployer"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage/sqldb"
	"github.com/dipdup-net/go-lib/config"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testArtifacts = filepath.Join("..", "..", "internal", "artifact", "testdata", "artifacts")

func ether(t *testing.T, value string) *big.Int {
	t.Helper()
	return decimal.RequireFromString(value).Shift(18).BigInt()
}

func newTestChain(t *testing.T, balances ...*big.Int) (*chain.Client, []*chain.Signer) {
	t.Helper()

	alloc := make(types.GenesisAlloc)
	signers := make([]*chain.Signer, len(balances))
	for i := range balances {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		signers[i] = chain.NewSigner(key)
		alloc[signers[i].Address] = types.Account{Balance: balances[i]}
	}

	backend := simulated.NewBackend(alloc)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = backend.Close()
	})

	client, err := chain.NewClient(context.Background(), backend.Client(), chain.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	return client, signers
}

func newTestRegistry(t *testing.T) sqldb.Storage {
	t.Helper()

	registry, err := sqldb.Create(context.Background(), config.Database{
		Kind: config.DBKindSqlite,
		Path: filepath.Join(t.TempDir(), "registry_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = registry.Close()
	})
	return registry
}

func TestPrintAccounts(t *testing.T) {
	client, signers := newTestChain(t, ether(t, "100"), ether(t, "1.5"), big.NewInt(0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, printAccounts(ctx, &out, client, signers))

	want := fmt.Sprintf("0\t%s\t100 ETH\tdeployer\n1\t%s\t1.5 ETH\tsigner\n2\t%s\t0 ETH\tsigner\n",
		signers[0].Address.Hex(), signers[1].Address.Hex(), signers[2].Address.Hex())
	require.Equal(t, want, out.String())
}

func TestPrintAccounts_Canceled(t *testing.T) {
	client, signers := newTestChain(t, ether(t, "1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.Error(t, printAccounts(ctx, &out, client, signers))
	require.Empty(t, out.String())
}

func TestCollectStatus(t *testing.T) {
	client, signers := newTestChain(t, ether(t, "100"))
	registry := newTestRegistry(t)

	store := artifact.NewStore(testArtifacts)
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := deployer.New(client, store, signers,
		deployer.WithRegistry(registry.Deployments),
		deployer.WithNetwork("localhost"),
	)
	require.NoError(t, err)
	results, err := d.Run(ctx, deployer.DefaultPlan())
	require.NoError(t, err)

	sepolia := storage.Deployment{
		RunID:        "7e9a1b3c-5d7f-4e2a-b4c6-d8e0f2a4b6c8",
		Network:      "sepolia",
		ChainID:      11155111,
		Name:         "SpaceRoomManager",
		Address:      "0x3aa5ebb10dc797cac828524e59a333d0a371443c",
		Deployer:     strings.ToLower(signers[0].Address.Hex()),
		BytecodeHash: "0x9c2b4a8f0e1d3c5b7a9f8e6d4c2b0a1f3e5d7c9b8a6f4e2d0c1b3a5f7e9d8c6b",
		Cost:         decimal.Zero,
		Status:       storage.StatusDeployed,
	}
	require.NoError(t, registry.Deployments.Save(ctx, &sepolia))

	rows, err := collectStatus(ctx, client, registry.Deployments, "localhost", "", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for i, row := range rows {
		require.Equal(t, results[i].Name, row.Name)
		require.Equal(t, "localhost", row.Network)
		require.Equal(t, strings.ToLower(results[i].Address.Hex()), row.Address)
		require.NotNil(t, row.HasCode)
		require.True(t, *row.HasCode)
		require.Empty(t, row.Error)
	}

	byRun, err := collectStatus(ctx, client, registry.Deployments, "localhost", results[0].RunID, 2)
	require.NoError(t, err)
	require.Equal(t, rows, byRun)

	_, err = collectStatus(ctx, client, registry.Deployments, "localhost", sepolia.RunID, 2)
	require.ErrorContains(t, err, `recorded on "sepolia"`)

	unknown, err := collectStatus(ctx, client, registry.Deployments, "localhost", "00000000-0000-0000-0000-000000000000", 2)
	require.NoError(t, err)
	require.Empty(t, unknown)
}

func TestForget(t *testing.T) {
	registry := newTestRegistry(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, record := range []storage.Deployment{
		{Network: "localhost", Name: "SpaceRoomManager", Address: "0x5fbdb2315678afecb367f032d93f642f64180aa3"},
		{Network: "localhost", Name: "SpaceRoomManager", Address: "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"},
		{Network: "localhost", Name: "VotingManager", Address: "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0"},
		{Network: "sepolia", Name: "SpaceRoomManager", Address: "0x3aa5ebb10dc797cac828524e59a333d0a371443c"},
	} {
		record.RunID = "5b0c3c52-7a4b-4a8e-9d3a-3f6a1f0c2b11"
		record.Deployer = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
		record.BytecodeHash = "0x9c2b4a8f0e1d3c5b7a9f8e6d4c2b0a1f3e5d7c9b8a6f4e2d0c1b3a5f7e9d8c6b"
		record.Cost = decimal.Zero
		record.Status = storage.StatusDeployed
		require.NoError(t, registry.Deployments.Save(ctx, &record))
	}

	var out bytes.Buffer
	require.NoError(t, forget(ctx, &out, registry, "localhost", []string{"SpaceRoomManager", "Room"}))
	require.Equal(t, "SpaceRoomManager: 2 records forgotten on localhost\nRoom: 0 records forgotten on localhost\n", out.String())

	_, err := registry.Deployments.Latest(ctx, "localhost", "SpaceRoomManager")
	require.ErrorIs(t, err, sql.ErrNoRows)

	voting, err := registry.Deployments.Latest(ctx, "localhost", "VotingManager")
	require.NoError(t, err)
	require.Equal(t, "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0", voting.Address)

	_, err = registry.Deployments.Latest(ctx, "sepolia", "SpaceRoomManager")
	require.NoError(t, err)
}
