package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// NewSemaphore returns a Limiter allowing n calls in flight at once.
func NewSemaphore(n int64) Limiter {
	if n < 1 {
		n = 1
	}
	return &semaphoreLimiter{sem: semaphore.NewWeighted(n)}
}

type semaphoreLimiter struct {
	sem *semaphore.Weighted
}

func (s *semaphoreLimiter) Acquire(ctx context.Context) error { return s.sem.Acquire(ctx, 1) }
func (s *semaphoreLimiter) Release()                          { s.sem.Release(1) }

// NewRateLimiter returns a Limiter starting at most r calls per second with
// bursts of burst. It bounds starts, not calls in flight.
func NewRateLimiter(r float64, burst int) Limiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{lim: rate.NewLimiter(rate.Limit(r), burst)}
}

type rateLimiter struct {
	lim *rate.Limiter
}

func (r *rateLimiter) Acquire(ctx context.Context) error { return r.lim.Wait(ctx) }
func (r *rateLimiter) Release()                          {}

// Chain acquires every limiter in order and releases them in reverse.
func Chain(limiters ...Limiter) Limiter {
	return chain(limiters)
}

type chain []Limiter

func (c chain) Acquire(ctx context.Context) error {
	for i, l := range c {
		if err := l.Acquire(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				c[j].Release()
			}
			return err
		}
	}
	return nil
}

func (c chain) Release() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Release()
	}
}
