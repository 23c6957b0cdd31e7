// Package worker provides goroutine pool management.
//
// Background work (metadata prefetch at startup) goes through a bounded
// ants pool with context propagation instead of naked goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/pkg/logger"
)

// ErrPoolClosed is recorded for keys submitted to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool wraps ants.Pool with context-aware fan-out.
type Pool struct {
	pool *ants.Pool
	name string
}

// DefaultSize is used when a non-positive size is configured.
const DefaultSize = 8

// NewPool creates a named pool with the given capacity.
func NewPool(name string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	ap, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: ap, name: name}, nil
}

// Each runs fn once per key on the pool and waits for all of them.
// The returned map holds only the keys whose fn failed or never ran; it is
// empty when everything succeeded.
func (p *Pool) Each(ctx context.Context, keys []string, fn func(ctx context.Context, key string) error) map[string]error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	record := func(key string, err error) {
		mu.Lock()
		errs[key] = err
		mu.Unlock()
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			record(key, err)
			continue
		}
		key := key
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				record(key, err)
				return
			}
			if err := fn(ctx, key); err != nil {
				record(key, err)
			}
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPoolClosed
			}
			record(key, err)
		}
	}
	wg.Wait()
	return errs
}

// Shutdown releases the pool, waiting at most timeout for running tasks.
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("Worker pool shutdown timeout", zap.String("pool", p.name), zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
