// Package workerpool bounds how many compute-heavy pipeline stages run at once.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// Pool is a counting semaphore over compute slots. Safe for concurrent use.
type Pool struct {
	sem          *semaphore.Weighted
	size         int
	queueTimeout time.Duration
}

// New creates a pool with size slots (runtime.NumCPU() when size <= 0).
// queueTimeout > 0 bounds how long a task waits for a slot before ErrRateLimited.
func New(size int, queueTimeout time.Duration) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		sem:          semaphore.NewWeighted(int64(size)),
		size:         size,
		queueTimeout: queueTimeout,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Do runs fn once a slot is free. The slot is released when fn returns.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	metrics.WorkerPoolInFlight.Inc()
	defer func() {
		metrics.WorkerPoolInFlight.Dec()
		p.sem.Release(1)
	}()

	return fn(ctx)
}

func (p *Pool) acquire(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}

	waitCtx := ctx
	if p.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.queueTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait for worker: %w", ctxErr)
		}
		metrics.WorkerPoolRejectedTotal.Inc()
		return fmt.Errorf("no worker free after %s: %w", p.queueTimeout, domain.ErrRateLimited)
	}
	return nil
}
