package deployer

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dipdup-io/spaceroom-deployer/internal/artifact"
	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrUnknownSigner -
var ErrUnknownSigner = errors.New("unknown signer")

// Factories - contract factory lookup by name
type Factories interface {
	Factory(name string) (*artifact.Factory, error)
}

// Result - outcome of a single step
type Result struct {
	RunID       string
	Name        string
	Contract    string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Cost        decimal.Decimal
	Reused      bool
}

// Deployer - executes deployment plans step by step
type Deployer struct {
	client    *chain.Client
	factories Factories
	signers   []*chain.Signer
	registry  storage.IDeployment

	network       string
	confirmations uint64
	reset         bool
	out           io.Writer
}

// Option -
type Option func(*Deployer)

// WithRegistry - deployments are recorded into and reused from the registry
func WithRegistry(registry storage.IDeployment) Option {
	return func(d *Deployer) {
		d.registry = registry
	}
}

// WithNetwork - network name deployments are recorded under
func WithNetwork(network string) Option {
	return func(d *Deployer) {
		if network != "" {
			d.network = network
		}
	}
}

// WithConfirmations - blocks on top of the creation transaction's block to wait for
func WithConfirmations(confirmations uint64) Option {
	return func(d *Deployer) {
		if confirmations > 0 {
			d.confirmations = confirmations
		}
	}
}

// WithReset - ignore earlier deployments and deploy everything again
func WithReset(reset bool) Option {
	return func(d *Deployer) {
		d.reset = reset
	}
}

// WithOutput - progress and addresses are printed into the writer
func WithOutput(out io.Writer) Option {
	return func(d *Deployer) {
		if out != nil {
			d.out = out
		}
	}
}

// New -
func New(client *chain.Client, factories Factories, signers []*chain.Signer, opts ...Option) (*Deployer, error) {
	if len(signers) == 0 {
		return nil, chain.ErrNoSigners
	}

	d := &Deployer{
		client:        client,
		factories:     factories,
		signers:       signers,
		network:       "default",
		confirmations: 1,
		out:           io.Discard,
	}
	for i := range opts {
		opts[i](d)
	}
	return d, nil
}

// Run - executes steps in order. Every step waits for the previous one's confirmation.
// The first failure stops the run.
func (d *Deployer) Run(ctx context.Context, plan Plan) ([]Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.Info().
		Str("run", runID).
		Str("network", d.network).
		Stringer("chain_id", d.client.ChainID()).
		Stringer("deployer", d.signers[0].Address).
		Int("steps", len(plan.Steps)).
		Msg("starting deployment")

	deployed := make(map[string]common.Address, len(plan.Steps))
	results := make([]Result, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := d.runStep(ctx, runID, step, deployed)
		if err != nil {
			return results, errors.Wrap(err, step.Key())
		}
		deployed[step.Key()] = result.Address
		results = append(results, result)
	}

	log.Info().Str("run", runID).Int("deployed", len(results)).Msg("deployment finished")
	return results, nil
}

func (d *Deployer) runStep(ctx context.Context, runID string, step Step, deployed map[string]common.Address) (Result, error) {
	factory, err := d.factories.Factory(step.Contract)
	if err != nil {
		return Result{}, err
	}

	values, err := d.resolveArgs(step.Args, deployed)
	if err != nil {
		return Result{}, err
	}
	args, err := factory.CoerceArgs(values)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RunID:    runID,
		Name:     step.Key(),
		Contract: factory.Name,
	}

	if reused, ok, err := d.reuse(ctx, step.Key(), factory, values); err != nil {
		return result, err
	} else if ok {
		result.Address = common.HexToAddress(reused.Address)
		result.TxHash = common.HexToHash(reused.TxHash)
		result.BlockNumber = reused.BlockNumber
		result.Cost = decimal.Zero
		result.Reused = true

		record := reused
		record.ID = 0
		record.RunID = runID
		record.GasUsed = 0
		record.Cost = decimal.Zero
		record.Status = storage.StatusReused
		record.Error = nil
		record.CreatedAt = time.Time{}
		if err := d.save(ctx, &record); err != nil {
			return result, err
		}

		fmt.Fprintf(d.out, "%s reused at: %s\n", result.Name, result.Address.Hex())
		return result, nil
	}

	signer := d.signers[0]
	record := &storage.Deployment{
		RunID:           runID,
		Network:         d.network,
		ChainID:         d.client.ChainID().Uint64(),
		Name:            result.Name,
		Deployer:        strings.ToLower(signer.Address.Hex()),
		ConstructorArgs: values,
		BytecodeHash:    factory.BytecodeHash.Hex(),
		Cost:            decimal.Zero,
		Status:          storage.StatusPending,
	}
	if err := d.save(ctx, record); err != nil {
		return result, err
	}

	address, tx, err := d.client.Deploy(ctx, signer, factory, args...)
	if err != nil {
		d.fail(ctx, record, err)
		return result, err
	}
	record.Address = strings.ToLower(address.Hex())
	record.TxHash = strings.ToLower(tx.Hash().Hex())

	log.Info().
		Str("contract", result.Name).
		Stringer("tx", tx.Hash()).
		Stringer("address", address).
		Uint64("confirmations", d.confirmations).
		Msg("wait for deployment")
	fmt.Fprintln(d.out, "wait for deployment")

	receipt, err := d.client.WaitForDeployment(ctx, tx, d.confirmations)
	if err != nil {
		d.fail(ctx, record, err)
		return result, err
	}

	cost := chain.ToEther(chain.DeploymentCost(receipt))
	result.Address = receipt.ContractAddress
	result.TxHash = tx.Hash()
	result.BlockNumber = receipt.BlockNumber.Uint64()
	result.GasUsed = receipt.GasUsed
	result.Cost = cost

	record.Address = strings.ToLower(receipt.ContractAddress.Hex())
	record.BlockNumber = result.BlockNumber
	record.GasUsed = result.GasUsed
	record.Cost = cost
	record.Status = storage.StatusDeployed
	if err := d.update(ctx, record); err != nil {
		return result, err
	}

	log.Info().
		Str("contract", result.Name).
		Stringer("address", result.Address).
		Uint64("block", result.BlockNumber).
		Uint64("gas_used", result.GasUsed).
		Str("cost", cost.String()).
		Msg("deployed")
	fmt.Fprintf(d.out, "%s deployed to: %s\n", result.Name, result.Address.Hex())

	return result, nil
}

func (d *Deployer) resolveArgs(args []string, deployed map[string]common.Address) ([]string, error) {
	values := make([]string, len(args))
	for i, arg := range args {
		ref, ok := parseReference(arg)
		if !ok {
			values[i] = unescape(arg)
			continue
		}

		var address common.Address
		switch {
		case ref.signer >= 0:
			if ref.signer >= len(d.signers) {
				return nil, errors.Wrapf(ErrUnknownSigner, "%s: only %d signers available", arg, len(d.signers))
			}
			address = d.signers[ref.signer].Address
		default:
			deployedAddress, ok := deployed[ref.step]
			if !ok {
				return nil, errors.Wrap(ErrUnknownReference, arg)
			}
			address = deployedAddress
		}
		values[i] = strings.ToLower(address.Hex())
	}
	return values, nil
}

func (d *Deployer) reuse(ctx context.Context, name string, factory *artifact.Factory, values []string) (storage.Deployment, bool, error) {
	if d.registry == nil || d.reset {
		return storage.Deployment{}, false, nil
	}

	latest, err := d.registry.Latest(ctx, d.network, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return latest, false, nil
	case err != nil:
		return latest, false, errors.Wrap(err, "registry lookup")
	}

	if latest.ChainID != d.client.ChainID().Uint64() ||
		latest.BytecodeHash != factory.BytecodeHash.Hex() ||
		!latest.SameArgs(values) {
		log.Info().Str("contract", name).Str("previous", latest.Address).Msg("contract changed, redeploying")
		return latest, false, nil
	}

	code, err := d.client.Code(ctx, common.HexToAddress(latest.Address))
	if err != nil {
		return latest, false, err
	}
	if len(code) == 0 {
		log.Warn().Str("contract", name).Str("previous", latest.Address).Msg("previous deployment has no code, redeploying")
		return latest, false, nil
	}
	return latest, true, nil
}

func (d *Deployer) save(ctx context.Context, record *storage.Deployment) error {
	if d.registry == nil {
		return nil
	}
	return errors.Wrap(d.registry.Save(ctx, record), "registry save")
}

func (d *Deployer) update(ctx context.Context, record *storage.Deployment) error {
	if d.registry == nil {
		return nil
	}
	return errors.Wrap(d.registry.Update(ctx, record), "registry update")
}

// fail - records the failure even if the run context is already canceled
func (d *Deployer) fail(ctx context.Context, record *storage.Deployment, cause error) {
	if d.registry == nil {
		return
	}
	record.Fail(cause)

	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.registry.Update(updateCtx, record); err != nil {
		log.Err(err).Str("contract", record.Name).Msg("saving failed deployment")
	}
}
