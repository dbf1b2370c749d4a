package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/dipdup-io/spaceroom-deployer/internal/artifact"
	"github.com/dipdup-net/go-lib/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// errors
var (
	ErrReverted = errors.New("deployment transaction reverted")
	ErrNoCode   = errors.New("no contract code at deployed address")
)

// Backend - the part of an EVM node API used for deployments. Satisfied by ethclient and the simulated backend.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client -
type Client struct {
	backend Backend
	chainID *big.Int
	closeFn func()

	timeout            time.Duration
	pollInterval       time.Duration
	gasLimit           uint64
	gasPriceMultiplier float64
}

// ClientOption -
type ClientOption func(*Client)

// WithTimeout - per request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPollInterval - how often receipts and new heads are polled while waiting for deployment
func WithPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithGasLimit - fixed gas limit for deployments. Zero means estimate.
func WithGasLimit(limit uint64) ClientOption {
	return func(c *Client) {
		c.gasLimit = limit
	}
}

// WithGasPriceMultiplier - multiplies the node's suggested priority fee
func WithGasPriceMultiplier(multiplier float64) ClientOption {
	return func(c *Client) {
		if multiplier > 0 {
			c.gasPriceMultiplier = multiplier
		}
	}
}

// Dial - connects to the node described by the data source
func Dial(ctx context.Context, cfg config.DataSource, opts ...ClientOption) (*Client, error) {
	timeout := time.Second * 10
	if cfg.Timeout > 0 {
		timeout = time.Second * time.Duration(cfg.Timeout)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rpc, err := ethclient.DialContext(dialCtx, cfg.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.URL)
	}

	opts = append([]ClientOption{WithTimeout(timeout)}, opts...)
	client, err := NewClient(ctx, rpc, opts...)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	client.closeFn = rpc.Close
	return client, nil
}

// NewClient -
func NewClient(ctx context.Context, backend Backend, opts ...ClientOption) (*Client, error) {
	c := &Client{
		backend:            backend,
		timeout:            time.Second * 10,
		pollInterval:       time.Second,
		gasPriceMultiplier: 1,
	}
	for i := range opts {
		opts[i](c)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chainID, err := backend.ChainID(reqCtx)
	if err != nil {
		return nil, errors.Wrap(err, "receiving chain id")
	}
	c.chainID = chainID
	return c, nil
}

// ChainID -
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close -
func (c *Client) Close() error {
	if c.closeFn != nil {
		c.closeFn()
	}
	return nil
}

// Balance - balance in wei at the latest block
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.backend.BalanceAt(reqCtx, address, nil)
}

// Code - runtime code at the latest block
func (c *Client) Code(ctx context.Context, address common.Address) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.backend.CodeAt(reqCtx, address, nil)
}

// Head - latest block number
func (c *Client) Head(ctx context.Context) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.backend.BlockNumber(reqCtx)
}

// Deploy - signs and sends the creation transaction. It does not wait for inclusion.
func (c *Client) Deploy(ctx context.Context, signer *Signer, factory *artifact.Factory, args ...any) (common.Address, *types.Transaction, error) {
	if _, err := factory.PackConstructor(args...); err != nil {
		return common.Address{}, nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(signer.key, c.chainID)
	if err != nil {
		return common.Address{}, nil, err
	}
	opts.Context = ctx
	opts.GasLimit = c.gasLimit

	if c.gasPriceMultiplier != 1 {
		tip, err := c.suggestTip(ctx)
		if err != nil {
			return common.Address{}, nil, err
		}
		opts.GasTipCap = tip
	}

	address, tx, _, err := bind.DeployContract(opts, factory.ABI, factory.Bytecode, c.backend, args...)
	if err != nil {
		return common.Address{}, nil, errors.Wrapf(err, "deploy %s", factory.Name)
	}

	log.Debug().
		Str("contract", factory.Name).
		Stringer("tx", tx.Hash()).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Stringer("address", address).
		Msg("deployment transaction sent")

	return address, tx, nil
}

func (c *Client) suggestTip(ctx context.Context) (*big.Int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tip, err := c.backend.SuggestGasTipCap(reqCtx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas tip")
	}

	scaled, _ := new(big.Float).Mul(new(big.Float).SetInt(tip), big.NewFloat(c.gasPriceMultiplier)).Int(nil)
	return scaled, nil
}

// WaitForDeployment - blocks until the creation transaction is mined, buried under `confirmations` blocks
// and the contract code is present
func (c *Client) WaitForDeployment(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	if confirmations < 1 {
		confirmations = 1
	}

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.Wrapf(ErrReverted, "tx %s", tx.Hash().Hex())
	}

	if err := c.waitHead(ctx, receipt.BlockNumber.Uint64()+confirmations-1); err != nil {
		return receipt, err
	}

	code, err := c.Code(ctx, receipt.ContractAddress)
	if err != nil {
		return receipt, err
	}
	if len(code) == 0 {
		return receipt, errors.Wrap(ErrNoCode, receipt.ContractAddress.Hex())
	}

	return receipt, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			log.Trace().Stringer("tx", hash).Msg("transaction is not yet mined")
		default:
			log.Warn().Err(err).Stringer("tx", hash).Msg("receiving transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.backend.TransactionReceipt(reqCtx, hash)
}

func (c *Client) waitHead(ctx context.Context, level uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		head, err := c.Head(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("receiving head")
		} else if head >= level {
			return nil
		} else {
			log.Trace().Uint64("head", head).Uint64("wait", level).Msg("waiting for confirmations")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
