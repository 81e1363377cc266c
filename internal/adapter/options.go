package adapter

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/dialer"
	"github.com/frankli0324/asynchttp/internal/session"
	"github.com/frankli0324/asynchttp/internal/worker"
)

// Option configures a [Transport].
type Option func(*Transport)

// WithLogger sets the logger. Transports log nothing by default.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithLimiter sets the limiter every dispatch of this transport goes
// through unless a call brings its own.
func WithLimiter(l worker.Limiter) Option {
	return func(t *Transport) { t.limiter = l }
}

// WithMiddleware wraps every exchange in mws, the last one runs first.
func WithMiddleware(mws ...session.Middleware) Option {
	return func(t *Transport) { t.middlewares = append(t.middlewares, mws...) }
}

// WithDialer replaces the pooling dialer.
func WithDialer(d dialer.Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithResolveConfig sets the DNS server and static hosts used when dialing.
func WithResolveConfig(rc *dialer.ResolveConfig) Option {
	return func(t *Transport) { t.resolve = rc }
}

type sendOptions struct {
	verify         *bool
	connectTimeout *time.Duration
	readTimeout    *time.Duration
	cert           *tls.Certificate
	limiter        worker.Limiter
	stream         bool
	proxy          *string
	hooks          []session.Hook
	header         http.Header
}

// SendOption overrides a connection setting for a single Send.
type SendOption func(*sendOptions)

// WithVerify turns TLS certificate verification on or off.
func WithVerify(verify bool) SendOption {
	return func(o *sendOptions) { o.verify = &verify }
}

// WithTimeout bounds both connecting and every read of the exchange.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.connectTimeout = &d
		o.readTimeout = &d
	}
}

// WithReadTimeout bounds every read of the exchange.
func WithReadTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.readTimeout = &d }
}

// WithCert presents cert to servers asking for a client certificate.
func WithCert(cert tls.Certificate) SendOption {
	return func(o *sendOptions) { o.cert = &cert }
}

// WithCallLimiter dispatches this call, and the reads of its body, through l.
func WithCallLimiter(l worker.Limiter) SendOption {
	return func(o *sendOptions) { o.limiter = l }
}

// WithStream leaves the body unread so it can be consumed through
// [Response.StreamDownload].
func WithStream(stream bool) SendOption {
	return func(o *sendOptions) { o.stream = stream }
}

// WithProxy routes the call through proxy, "" disables the configured one.
func WithProxy(proxy string) SendOption {
	return func(o *sendOptions) { o.proxy = &proxy }
}

// WithHooks registers hooks run with the response before Send returns.
func WithHooks(hooks ...session.Hook) SendOption {
	return func(o *sendOptions) { o.hooks = append(o.hooks, hooks...) }
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

type streamOptions struct {
	decompress bool
	blockSize  int
}

// StreamOption configures a [DownloadStream].
type StreamOption func(*streamOptions)

// WithDecompress controls content decoding, on by default.
func WithDecompress(decompress bool) StreamOption {
	return func(o *streamOptions) { o.decompress = decompress }
}

// WithBlockSize bounds the size of every chunk, n <= 0 keeps the default.
func WithBlockSize(n int) StreamOption {
	return func(o *streamOptions) {
		if n > 0 {
			o.blockSize = n
		}
	}
}
