package session

import (
	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/dialer"
)

type clientOptions struct {
	log     *zerolog.Logger
	resolve *dialer.ResolveConfig
	dialer  Dialer
}

type ClientOption func(*clientOptions)

// WithLogger sets the logger pooled connections report errors to.
func WithLogger(l *zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.log = l }
}

func WithResolveConfig(rc *dialer.ResolveConfig) ClientOption {
	return func(o *clientOptions) { o.resolve = rc }
}

// WithDialer replaces the pooling dialer entirely.
func WithDialer(d Dialer) ClientOption {
	return func(o *clientOptions) { o.dialer = d }
}
