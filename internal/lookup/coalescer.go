// Package lookup serialises as-you-type backend lookups so only the newest
// request for a key can deliver a result.
package lookup

import (
	"context"
	"errors"
	"sync"
	"time"

	"shipportal/internal/metrics"
)

// ErrSuperseded is returned to a caller whose request was replaced by a newer
// one for the same key. Its result, if any, has been discarded.
var ErrSuperseded = errors.New("lookup superseded by a newer request")

// DefaultDebounce is how long a request waits before it calls the backend.
const DefaultDebounce = 300 * time.Millisecond

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Coalescer runs at most one live lookup per key. Starting a new one cancels
// the previous call's context, and a superseded call never returns data.
type Coalescer[T any] struct {
	kind     string
	debounce time.Duration

	mu   sync.Mutex
	gen  map[string]uint64
	live map[string]inflight
}

// NewCoalescer returns a Coalescer; kind labels the superseded metric.
func NewCoalescer[T any](kind string, debounce time.Duration) *Coalescer[T] {
	if debounce < 0 {
		debounce = 0
	}
	return &Coalescer[T]{kind: kind, debounce: debounce, gen: map[string]uint64{}, live: map[string]inflight{}}
}

// Do waits out the debounce window then calls fn, unless a newer Do for the
// same key arrives first.
func (c *Coalescer[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.gen[key]++
	g := c.gen[key]
	if prev, ok := c.live[key]; ok {
		prev.cancel()
	}
	c.live[key] = inflight{gen: g, cancel: cancel}
	c.mu.Unlock()
	defer c.release(key, g)

	if c.debounce > 0 {
		t := time.NewTimer(c.debounce)
		select {
		case <-t.C:
		case <-cctx.Done():
			t.Stop()
			return zero, c.abandoned(ctx, key, g)
		}
	}

	v, err := fn(cctx)
	if !c.current(key, g) {
		metrics.LookupsSuperseded.WithLabelValues(c.kind).Inc()
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Generation reports the latest generation issued for key.
func (c *Coalescer[T]) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

func (c *Coalescer[T]) current(key string, g uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key] == g
}

func (c *Coalescer[T]) abandoned(ctx context.Context, key string, g uint64) error {
	if !c.current(key, g) {
		metrics.LookupsSuperseded.WithLabelValues(c.kind).Inc()
		return ErrSuperseded
	}
	return ctx.Err()
}

func (c *Coalescer[T]) release(key string, g uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if in, ok := c.live[key]; ok && in.gen == g {
		delete(c.live, key)
	}
}
