// Package adapter lets callers await blocking HTTP exchanges. Sending a
// request and pulling each chunk of a streamed body are dispatched to a
// worker goroutine, the caller waits on completion or on its context.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/dialer"
	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/session"
	"github.com/frankli0324/asynchttp/internal/worker"
)

// AsyncTransport is the contract a request pipeline drives its transport
// through.
type AsyncTransport interface {
	Open() error
	Close() error
	Send(ctx context.Context, req *model.Request, opts ...SendOption) (*Response, error)
	Sleep(ctx context.Context, d time.Duration) error
}

var _ AsyncTransport = (*Transport)(nil)

// Transport owns one session, and with it one connection pool, from Open
// to Close. Concurrent Sends are fine; the responses they return are not
// safe for concurrent use.
type Transport struct {
	cfg         model.ConnectionConfig
	log         zerolog.Logger
	limiter     worker.Limiter
	middlewares []session.Middleware
	dialer      dialer.Dialer
	resolve     *dialer.ResolveConfig

	mu     sync.Mutex
	client *session.Client
}

func New(cfg model.ConnectionConfig, opts ...Option) *Transport {
	t := &Transport{
		cfg: cfg.WithDefaults(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the connection settings with defaults applied.
func (t *Transport) Config() model.ConnectionConfig { return t.cfg }

// Open creates the session if there is none. It may be called any number
// of times; Send calls it too.
func (t *Transport) Open() error {
	_, err := t.session()
	return err
}

func (t *Transport) session() (*session.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	opts := []session.ClientOption{session.WithLogger(&t.log), session.WithResolveConfig(t.resolve)}
	if t.dialer != nil {
		opts = append(opts, session.WithDialer(t.dialer))
	}
	c := session.New(t.cfg, opts...)
	c.Use(t.middlewares...)
	t.client = c
	t.log.Debug().Msg("transport opened")
	return c, nil
}

// Close releases the session. Responses still being read keep their own
// connection until their body is done. A closed transport opens again on
// the next Send.
func (t *Transport) Close() error {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}
	t.log.Debug().Msg("transport closed")
	return c.Close()
}

// Run opens the transport, calls fn and closes the transport whatever fn
// did, panics included. An error from fn wins over one from Close.
func (t *Transport) Run(fn func(*Transport) error) (err error) {
	if err := t.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := t.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(t)
}

// Sleep waits for d or until ctx is done.
func (t *Transport) Sleep(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return invalidArgument("sleep", "negative duration "+d.String())
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sent struct {
	raw     *model.Response
	content []byte
}

// Send performs the exchange for req on a worker goroutine. Unless
// [WithStream] is given the whole body is read, and decoded, before Send
// returns.
func (t *Transport) Send(ctx context.Context, req *model.Request, opts ...SendOption) (*Response, error) {
	o := sendOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if (o.connectTimeout != nil && *o.connectTimeout < 0) || (o.readTimeout != nil && *o.readTimeout < 0) {
		return nil, invalidArgument("send", "negative timeout")
	}
	client, err := t.session()
	if err != nil {
		return nil, translate("send", req.URL, err)
	}
	pr, err := req.Prepare()
	if err != nil {
		return nil, translate("send", req.URL, &session.Error{Phase: session.PhasePrepare, Err: err})
	}
	for k, v := range o.header {
		pr.Header[k] = append(pr.Header[k], v...)
	}

	id := uuid.NewString()
	log := t.log.With().Str("request_id", id).Str("method", pr.Method).Str("url", req.URL).Logger()
	dctx := dialer.WithOptions(ctx, t.dialOptions(&o))
	lim := o.limiter
	if lim == nil {
		lim = t.limiter
	}

	start := time.Now()
	log.Debug().Bool("stream", o.stream).Msg("sending request")
	res, err := worker.Run(ctx, lim, func() (sent, error) {
		raw, err := client.Do(dctx, pr, o.hooks...)
		if err != nil {
			return sent{}, err
		}
		if o.stream {
			return sent{raw: raw}, nil
		}
		content, err := readContent(raw.Body, raw.Header, true)
		return sent{raw: raw, content: content}, err
	}, func(s sent) {
		if s.raw != nil {
			s.raw.Body.Close()
		}
	})
	if err != nil {
		err = translate("send", req.URL, err)
		log.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return nil, err
	}
	log.Debug().Int("status", res.raw.StatusCode).Dur("elapsed", time.Since(start)).Msg("response received")

	return &Response{
		Request:    req,
		StatusCode: res.raw.StatusCode,
		Status:     res.raw.Status,
		Proto:      res.raw.Proto,
		Header:     res.raw.Header,
		ID:         id,

		raw:       res.raw,
		content:   res.content,
		loaded:    !o.stream,
		limiter:   lim,
		blockSize: t.cfg.DataBlockSize,
		log:       log,
	}, nil
}

func (t *Transport) dialOptions(o *sendOptions) dialer.Options {
	d := dialer.Options{
		Verify:         t.cfg.VerifyTLS(),
		Cert:           t.cfg.Cert,
		Proxy:          t.cfg.Proxy,
		ConnectTimeout: t.cfg.ConnectTimeout,
		ReadTimeout:    t.cfg.ReadTimeout,
	}
	if o.verify != nil {
		d.Verify = *o.verify
	}
	if o.cert != nil {
		d.Cert = o.cert
	}
	if o.proxy != nil {
		d.Proxy = *o.proxy
	}
	if o.connectTimeout != nil {
		d.ConnectTimeout = *o.connectTimeout
	}
	if o.readTimeout != nil {
		d.ReadTimeout = *o.readTimeout
	}
	return d
}
