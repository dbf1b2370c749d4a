package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// IDeployment -
type IDeployment interface {
	Save(ctx context.Context, deployment *Deployment) error
	Update(ctx context.Context, deployment *Deployment) error
	Latest(ctx context.Context, network, name string) (Deployment, error)
	List(ctx context.Context, network string) ([]Deployment, error)
	ByRun(ctx context.Context, runID string) ([]Deployment, error)
}

// Deployment -
type Deployment struct {
	bun.BaseModel `bun:"table:deployment" comment:"Table with contract deployments"`

	ID              uint64          `bun:"id,pk,autoincrement" comment:"Unique internal identity"`
	RunID           string          `bun:"run_id,notnull" comment:"Identity of the deploy run which created the row"`
	Network         string          `bun:"network,notnull" comment:"Name of the network (datasource) the contract was deployed to"`
	ChainID         uint64          `bun:"chain_id,notnull" comment:"EIP-155 chain id"`
	Name            string          `bun:"name,notnull" comment:"Contract name"`
	Address         string          `bun:"address" comment:"Deployed contract address"`
	TxHash          string          `bun:"tx_hash" comment:"Creation transaction hash"`
	BlockNumber     uint64          `bun:"block_number" comment:"Block which included the creation transaction"`
	Deployer        string          `bun:"deployer,notnull" comment:"Address of the signer"`
	ConstructorArgs []string        `bun:"constructor_args,type:jsonb" comment:"Resolved constructor arguments"`
	BytecodeHash    string          `bun:"bytecode_hash,notnull" comment:"Keccak256 of creation bytecode without arguments"`
	GasUsed         uint64          `bun:"gas_used" comment:"Gas used by the creation transaction"`
	Cost            decimal.Decimal `bun:"cost,type:numeric" comment:"Deployment cost in ether"`
	Status          Status          `bun:"status,notnull" comment:"Deployment status"`
	Error           *string         `bun:"error" comment:"If deployment is failed this field contains error string"`
	CreatedAt       time.Time       `bun:"created_at,notnull" comment:"Time when row was created"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull" comment:"Time when row was last updated"`
}

// TableName -
func (Deployment) TableName() string {
	return "deployment"
}

var _ bun.BeforeAppendModelHook = (*Deployment)(nil)

// BeforeAppendModel -
func (d *Deployment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if d == nil {
		return nil
	}
	switch query.(type) {
	case *bun.InsertQuery:
		d.UpdatedAt = time.Now().UTC()
		if d.CreatedAt.IsZero() {
			d.CreatedAt = d.UpdatedAt
		}
	case *bun.UpdateQuery:
		d.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// SameArgs - true if the deployment was created with the same constructor arguments
func (d Deployment) SameArgs(args []string) bool {
	if len(d.ConstructorArgs) != len(args) {
		return false
	}
	for i := range args {
		if d.ConstructorArgs[i] != args[i] {
			return false
		}
	}
	return true
}

// Fail - marks deployment as failed with the error text
func (d *Deployment) Fail(err error) {
	d.Status = StatusFailed
	if err != nil {
		text := err.Error()
		d.Error = &text
	}
}
