package sqldb

import (
	"context"

	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/uptrace/bun"
)

// Deployment -
type Deployment struct {
	db bun.IDB
}

// NewDeployment -
func NewDeployment(db bun.IDB) *Deployment {
	return &Deployment{db: db}
}

// Save - inserts new deployment
func (d *Deployment) Save(ctx context.Context, deployment *storage.Deployment) error {
	_, err := d.db.NewInsert().Model(deployment).Returning("id").Exec(ctx)
	return err
}

// Update -
func (d *Deployment) Update(ctx context.Context, deployment *storage.Deployment) error {
	_, err := d.db.NewUpdate().Model(deployment).WherePK().Exec(ctx)
	return err
}

// Latest - last row of the contract on the network pointing at a live contract
func (d *Deployment) Latest(ctx context.Context, network, name string) (deployment storage.Deployment, err error) {
	err = d.db.NewSelect().
		Model(&deployment).
		Where("network = ?", network).
		Where("name = ?", name).
		Where("status IN (?)", bun.In(storage.LiveStatuses)).
		Order("id desc").
		Limit(1).
		Scan(ctx)
	return
}

// List - every deployment record of the network, oldest first
func (d *Deployment) List(ctx context.Context, network string) (deployments []storage.Deployment, err error) {
	query := d.db.NewSelect().Model(&deployments).Order("id asc")
	if network != "" {
		query.Where("network = ?", network)
	}
	err = query.Scan(ctx)
	return
}

// ByRun - deployments created by a single deploy run
func (d *Deployment) ByRun(ctx context.Context, runID string) (deployments []storage.Deployment, err error) {
	err = d.db.NewSelect().
		Model(&deployments).
		Where("run_id = ?", runID).
		Order("id asc").
		Scan(ctx)
	return
}
