package chain

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dipdup-net/go-lib/config"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

type chainIDService struct {
	chainID *big.Int
}

// ChainId - served as eth_chainId
func (s *chainIDService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(s.chainID)
}

func newTestNode(t *testing.T, chainID int64) string {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &chainIDService{chainID: big.NewInt(chainID)}))

	node := httptest.NewServer(server)
	t.Cleanup(func() {
		node.Close()
		server.Stop()
	})
	return node.URL
}

func TestDial(t *testing.T) {
	url := newTestNode(t, 31337)

	client, err := Dial(context.Background(), config.DataSource{URL: url, Timeout: 5})
	require.NoError(t, err)
	require.EqualValues(t, 31337, client.ChainID().Int64())
	require.NoError(t, client.Close())
}

func TestDial_Errors(t *testing.T) {
	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(hanging.Close)

	tests := []struct {
		name    string
		ds      config.DataSource
		wantErr string
	}{
		{
			name:    "unknown scheme",
			ds:      config.DataSource{URL: "ftp://127.0.0.1:8545"},
			wantErr: "dial ftp://127.0.0.1:8545",
		}, {
			name:    "unreachable",
			ds:      config.DataSource{URL: "http://127.0.0.1:1", Timeout: 1},
			wantErr: "receiving chain id",
		}, {
			name:    "timeout",
			ds:      config.DataSource{URL: hanging.URL, Timeout: 1},
			wantErr: "receiving chain id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			client, err := Dial(context.Background(), tt.ds)
			require.ErrorContains(t, err, tt.wantErr)
			require.Nil(t, client)
			require.Less(t, time.Since(start), 5*time.Second)
		})
	}
}
