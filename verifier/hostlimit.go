package verifier

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// hostLimiter caps in-flight checks per host key. Semaphores are created on
// first use and live for the verifier's lifetime.
type hostLimiter struct {
	limit int64
	mu    sync.Mutex
	sems  map[string]*semaphore.Weighted
}

func newHostLimiter(limit int) *hostLimiter {
	return &hostLimiter{
		limit: int64(limit),
		sems:  make(map[string]*semaphore.Weighted),
	}
}

// acquire blocks until a slot for host is free or ctx is done. The returned
// release func must be called exactly once.
func (h *hostLimiter) acquire(ctx context.Context, host string) (func(), error) {
	sem := h.get(host)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

func (h *hostLimiter) get(host string) *semaphore.Weighted {
	h.mu.Lock()
	defer h.mu.Unlock()

	sem, ok := h.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(h.limit)
		h.sems[host] = sem
	}
	return sem
}
