package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

type PoolConfig struct {
	MaxWorkers int
}

// Pool is the process-wide worker pool. Every parallel stage fans its work
// units out through Map; a task running inside Map must not call Map on the
// same pool.
type Pool struct {
	pool *ants.Pool
	size int
}

// NewPool sizes the pool once. A non-positive MaxWorkers uses the host's
// logical CPU count.
func NewPool(config PoolConfig) (*Pool, error) {
	size := config.MaxWorkers
	if size <= 0 {
		size = DefaultWorkers()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		log.Errorf("Failed to create ants goroutine_pool: %v", err)
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Pool{pool: pool, size: size}, nil
}

// Size returns the configured worker count.
func (p *Pool) Size() int {
	return p.size
}

// Map runs fn(ctx, i) for i in [0, n) on the pool and waits for all of them.
// The first error cancels the remaining units and is returned. Callers write
// results into index i of a preallocated slice so the merge is deterministic.
func (p *Pool) Map(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		idx := i
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, idx); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			log.Errorf("Pool.Map: failed to submit task %d: %v", idx, err)
			fail(fmt.Errorf("submit task %d: %w", idx, err))
			break
		}
	}
	wg.Wait()

	if firstErr == nil {
		return parent.Err()
	}
	return firstErr
}

// Release frees the pool's workers.
func (p *Pool) Release() {
	p.pool.Release()
}
