// Package worker runs blocking calls on their own goroutine so the caller
// only ever waits on a channel it can walk away from.
package worker

import (
	"context"
)

// Limiter bounds how many dispatched calls may be in flight. It is not
// interpreted here: Acquire is called before the call starts and Release
// once it returns.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

type result[T any] struct {
	v   T
	err error
}

// Run calls fn on a new goroutine and waits for it or for ctx. When ctx wins
// the call keeps running and abandon, if not nil, receives its value once it
// returns, so whatever it produced can be released.
func Run[T any](ctx context.Context, lim Limiter, fn func() (T, error), abandon func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if lim != nil {
		if err := lim.Acquire(ctx); err != nil {
			return zero, err
		}
	}
	done := make(chan result[T], 1)
	go func() {
		if lim != nil {
			defer lim.Release()
		}
		v, err := fn()
		done <- result[T]{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			if abandon != nil && r.err == nil {
				abandon(r.v)
			}
		}()
		return zero, ctx.Err()
	}
}
