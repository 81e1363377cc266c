// Package asynchttp is an HTTP/1.1 client whose exchanges, and every read of a
// streamed body, can be awaited without blocking the caller on the network.
package asynchttp

import (
	"github.com/frankli0324/asynchttp/internal/adapter"
	"github.com/frankli0324/asynchttp/internal/session"
	"github.com/frankli0324/asynchttp/internal/worker"
)

// Transport performs HTTP/1.1 exchanges on worker goroutines so the caller
// only waits on completion or on its context. A zero Transport is not
// usable, create one with [New].
type Transport = adapter.Transport

// AsyncTransport is the contract a request pipeline drives a [Transport]
// through.
type AsyncTransport = adapter.AsyncTransport

type (
	Option       = adapter.Option
	SendOption   = adapter.SendOption
	StreamOption = adapter.StreamOption
)

// Middleware wraps the blocking exchange. The last one registered runs
// first.
type Middleware = session.Middleware
type Handler = session.Handler
type Hook = session.Hook

// Limiter bounds the dispatches in flight, see [NewSemaphore] and
// [NewRateLimiter].
type Limiter = worker.Limiter

var (
	// New creates a Transport for cfg, zero fields take their defaults.
	New = adapter.New

	WithLogger        = adapter.WithLogger
	WithLimiter       = adapter.WithLimiter
	WithMiddleware    = adapter.WithMiddleware
	WithDialer        = adapter.WithDialer
	WithResolveConfig = adapter.WithResolveConfig

	WithVerify      = adapter.WithVerify
	WithTimeout     = adapter.WithTimeout
	WithReadTimeout = adapter.WithReadTimeout
	WithCert        = adapter.WithCert
	WithCallLimiter = adapter.WithCallLimiter
	WithStream      = adapter.WithStream
	WithProxy       = adapter.WithProxy
	WithHooks       = adapter.WithHooks
	WithHeader      = adapter.WithHeader

	WithDecompress = adapter.WithDecompress
	WithBlockSize  = adapter.WithBlockSize

	NewSemaphore   = worker.NewSemaphore
	NewRateLimiter = worker.NewRateLimiter
	ChainLimiters  = worker.Chain
)
