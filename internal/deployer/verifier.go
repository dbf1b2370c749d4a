package deployer

import (
	"context"

	"github.com/dipdup-io/spaceroom-deployer/internal/chain"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/dipdup-io/workerpool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Verification - on-chain state of a recorded deployment
type Verification struct {
	Deployment storage.Deployment
	Checked    bool
	HasCode    bool
	Err        error
}

type verifyTask struct {
	index      int
	deployment storage.Deployment
}

// Verifier - checks recorded deployments against the chain concurrently
type Verifier struct {
	client       *chain.Client
	workersCount int
}

// NewVerifier -
func NewVerifier(client *chain.Client, workersCount int) *Verifier {
	if workersCount < 1 {
		workersCount = 4
	}
	return &Verifier{
		client:       client,
		workersCount: workersCount,
	}
}

// Verify - result order matches input order. Only rows pointing at a live contract are checked.
func (v *Verifier) Verify(ctx context.Context, deployments []storage.Deployment) []Verification {
	results := make([]Verification, len(deployments))
	for i := range deployments {
		results[i].Deployment = deployments[i]
	}

	// workers outlive ctx so queued tasks are always drained; handlers return early once ctx is done
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	finished := make(chan int, len(deployments))

	pool := workerpool.NewPool(func(_ context.Context, task verifyTask) {
		defer func() {
			finished <- task.index
		}()
		if err := ctx.Err(); err != nil {
			results[task.index].Err = err
			return
		}
		code, err := v.client.Code(ctx, common.HexToAddress(task.deployment.Address))
		results[task.index].Checked = true
		results[task.index].HasCode = len(code) > 0
		results[task.index].Err = err
	}, v.workersCount)
	pool.Start(poolCtx)

	var queued int
feed:
	for i := range deployments {
		if !deployments[i].Status.IsLive() || deployments[i].Address == "" {
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		default:
		}
		pool.AddTask(verifyTask{index: i, deployment: deployments[i]})
		queued++
	}

	for done := 0; done < queued; done++ {
		<-finished
	}

	cancel()
	if err := pool.Close(); err != nil {
		log.Err(err).Msg("closing verification pool")
	}

	if err := ctx.Err(); err != nil {
		for i := range results {
			if !results[i].Checked && results[i].Deployment.Status.IsLive() {
				results[i].Err = err
			}
		}
	}
	return results
}
