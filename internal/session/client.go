// Package session performs blocking HTTP/1.1 exchanges: one call dials (or
// reuses) a connection, writes the request and reads the response header.
// Redirects are never followed.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/frankli0324/asynchttp/internal/dialer"
	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/netpool"
	"github.com/frankli0324/asynchttp/internal/transport"
)

type PreparedRequest = model.PreparedRequest

type Handler = func(ctx context.Context, req *PreparedRequest) (*model.Response, error)
type Middleware func(next Handler) Handler

// Hook observes a response before it is handed to the caller.
type Hook func(resp *model.Response)

type Dialer = dialer.Dialer

// Phase is the step of an exchange an error occurred in.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseDial
	PhaseWrite
	PhaseRead
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseDial:
		return "dial"
	case PhaseWrite:
		return "write"
	case PhaseRead:
		return "read"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Error tags a failed exchange with the phase it failed in.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string { return e.Phase.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	middlewares []Middleware
	dialer      Dialer
	transport   transport.Transport

	mu     sync.Mutex
	pool   *netpool.PoolGroup
	closed bool
}

// New returns a client dialing through a [dialer.CoreDialer] that pools
// connections according to cfg.
func New(cfg model.ConnectionConfig, opts ...ClientOption) *Client {
	cfg = cfg.WithDefaults()
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	pool := netpool.NewGroup(cfg.MaxConnsPerHost, cfg.MaxIdlePerHost, cfg.MaxIdleDuration, o.log)
	c := &Client{
		pool: pool,
		dialer: &dialer.CoreDialer{
			TLSConfig:     &tls.Config{},
			ConnPool:      pool,
			ResolveConfig: o.resolve,
			ProxyConfig:   &dialer.ProxyConfig{},
		},
	}
	if o.dialer != nil {
		c.dialer = o.dialer
	}
	return c
}

// Use appends mw to the end of the chain. The last "Use"d mw executes first
func (c *Client) Use(mws ...Middleware) {
	c.middlewares = append(c.middlewares, mws...)
}

// UseDialer replaces the dialer with the one wrap returns for it.
func (c *Client) UseDialer(wrap func(Dialer) Dialer) {
	c.dialer = wrap(c.dialer)
}

// UseCoreDialer is UseDialer for the innermost [dialer.CoreDialer], when there is one.
func (c *Client) UseCoreDialer(wrap func(*dialer.CoreDialer) Dialer) {
	c.UseDialer(func(d Dialer) Dialer {
		if cd, ok := d.(*dialer.CoreDialer); ok {
			return wrap(cd.Clone())
		}
		return d
	})
}

func (c *Client) dial(ctx context.Context, req *PreparedRequest) (io.ReadWriteCloser, error) {
	if c.dialer != nil {
		return c.dialer.Dial(ctx, req)
	}
	return nil, errors.New("session: no dialer")
}

func (c *Client) codec() transport.Transport {
	if c.transport != nil {
		return c.transport
	}
	return transport.HTTP1{}
}

// CtxDo prepares req and performs the exchange.
func (c *Client) CtxDo(ctx context.Context, req *model.Request, hooks ...Hook) (*model.Response, error) {
	pr, err := req.Prepare()
	if err != nil {
		return nil, &Error{PhasePrepare, err}
	}
	return c.Do(ctx, pr, hooks...)
}

// Do performs the exchange for an already prepared request. The response
// body owns the connection. Every error is a *[Error].
func (c *Client) Do(ctx context.Context, pr *PreparedRequest, hooks ...Hook) (*model.Response, error) {
	next := func(ctx context.Context, req *PreparedRequest) (*model.Response, error) {
		conn, err := c.dial(ctx, req)
		if err != nil {
			return nil, &Error{PhaseDial, err}
		}
		// a cancelled exchange must not stay blocked on the wire
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		codec := c.codec()
		if err := codec.Write(conn, req); err != nil {
			conn.Close()
			return nil, &Error{PhaseWrite, err}
		}
		resp := &model.Response{}
		if err := codec.Read(conn, req, resp); err != nil {
			conn.Close()
			return nil, &Error{PhaseRead, err}
		}
		if !stop() {
			// cancelled right after the header arrived, conn is gone
			resp.Body.Close()
			return nil, &Error{PhaseRead, ctx.Err()}
		}
		return resp, nil
	}
	for _, mw := range c.middlewares {
		next = mw(next)
	}
	resp, err := next(ctx, pr)
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			err = &Error{PhaseRead, err}
		}
		return nil, err
	}
	for _, h := range hooks {
		h(resp)
	}
	return resp, nil
}

// Close closes idle pooled connections. Responses still being read keep
// their connection until their body is done.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}
