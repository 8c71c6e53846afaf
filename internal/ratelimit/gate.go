package ratelimit

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate bounds calls to a paid upstream (the rendering proxy) both in flight
// and per second. A nil *Gate admits everything.
type Gate struct {
	slots   *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGate creates a gate admitting at most concurrency calls at once and
// requestsPerSecond calls per second. Non-positive values disable that bound.
func NewGate(concurrency int, requestsPerSecond float64) *Gate {
	g := &Gate{}
	if concurrency > 0 {
		g.slots = semaphore.NewWeighted(int64(concurrency))
	}
	if requestsPerSecond > 0 {
		burst := concurrency
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return g
}

// Acquire blocks until a slot and a token are available. The returned
// release func must be called once the upstream call completes.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if g == nil {
		return func() {}, nil
	}

	if g.slots != nil {
		if err := g.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if g.slots != nil {
				g.slots.Release(1)
			}
			return nil, err
		}
	}

	return func() {
		if g.slots != nil {
			g.slots.Release(1)
		}
	}, nil
}
