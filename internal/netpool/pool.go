package netpool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/nettools"
)

// Pool keeps connections to a single host. At most maxConn connections are
// checked out at a time, at most maxIdle wait for reuse.
type Pool struct {
	mu     sync.Mutex
	idle   *queue.Queue // of *Conn, oldest first
	closed bool

	connTicket      chan struct{}
	maxIdle         int
	maxIdleDuration time.Duration
	log             *zerolog.Logger
}

func NewPool(maxIdle, maxConn uint, maxIdleDuration time.Duration, log *zerolog.Logger) *Pool {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if maxConn == 0 {
		maxConn = 1
	}
	return &Pool{
		idle:            queue.New(),
		connTicket:      make(chan struct{}, maxConn),
		maxIdle:         int(maxIdle),
		maxIdleDuration: maxIdleDuration,
		log:             log,
	}
}

// Connect hands out an idle connection if a live one exists, dialing
// otherwise. It blocks while maxConn connections are checked out.
func (p *Pool) Connect(ctx context.Context, dial func(ctx context.Context) (net.Conn, error)) (*Conn, error) {
	select {
	case p.connTicket <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	for {
		c := p.popIdle()
		if c == nil {
			break
		}
		if p.maxIdleDuration != 0 && time.Since(c.lastIdle) > p.maxIdleDuration {
			c.conn.Close()
		} else if nettools.Alive(c.conn) {
			c.reused = true
			c.finished.Store(false)
			return c, nil
		} else {
			c.conn.Close()
		}
	}
	nc, err := dial(ctx)
	if err != nil {
		<-p.connTicket
		return nil, err
	}
	return &Conn{conn: nc, pool: p, log: p.log}, nil
}

func (p *Pool) popIdle() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle.Length() == 0 {
		return nil
	}
	return p.idle.Remove().(*Conn)
}

func (p *Pool) put(c *Conn) {
	p.mu.Lock()
	if p.closed || p.idle.Length() >= p.maxIdle {
		p.mu.Unlock()
		c.conn.Close()
	} else {
		c.lastIdle = time.Now()
		c.readTimeout = 0
		p.idle.Add(c)
		p.mu.Unlock()
	}
	<-p.connTicket
}

func (p *Pool) done() {
	<-p.connTicket
}

// Idle reports the number of connections waiting for reuse.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Length()
}

// Close closes idle connections, connections released afterwards are
// closed instead of kept.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for p.idle.Length() > 0 {
		p.idle.Remove().(*Conn).conn.Close()
	}
	return nil
}
