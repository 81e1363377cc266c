package adapter

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/frankli0324/asynchttp/internal/dialer"
	"github.com/frankli0324/asynchttp/internal/model"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// block is a segment that stalls the read until the conn is closed.
type block struct{}

// scriptedConn replays one read per segment. A segment is a []byte, an
// error or a block, once the script is over reads return io.EOF.
type scriptedConn struct {
	mu       sync.Mutex
	segments []interface{}
	written  strings.Builder
	closed   atomic.Bool
	done     chan struct{}
	once     sync.Once
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	c.mu.Lock()
	if len(c.segments) == 0 {
		c.mu.Unlock()
		return 0, io.EOF
	}
	seg := c.segments[0]
	switch seg := seg.(type) {
	case error:
		c.segments = c.segments[1:]
		c.mu.Unlock()
		return 0, seg
	case []byte:
		n := copy(p, seg)
		if n == len(seg) {
			c.segments = c.segments[1:]
		} else {
			c.segments[0] = seg[n:]
		}
		c.mu.Unlock()
		return n, nil
	case block:
		c.mu.Unlock()
		<-c.done
		return 0, io.ErrClosedPipe
	}
	panic("bad segment")
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *scriptedConn) Close() error {
	c.closed.Store(true)
	c.once.Do(func() { close(c.done) })
	return nil
}

type scriptedDialer struct {
	conn *scriptedConn
	err  error
}

func (d *scriptedDialer) Dial(ctx context.Context, r *model.PreparedRequest) (io.ReadWriteCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *scriptedDialer) Unwrap() dialer.Dialer { return nil }

func script(segments ...interface{}) (*Transport, *scriptedConn) {
	conn := &scriptedConn{done: make(chan struct{})}
	for _, s := range segments {
		if str, ok := s.(string); ok {
			s = []byte(str)
		}
		conn.segments = append(conn.segments, s)
	}
	return New(model.ConnectionConfig{}, WithDialer(&scriptedDialer{conn: conn})), conn
}

type countingLimiter struct {
	acquired, released atomic.Int32
}

func (l *countingLimiter) Acquire(context.Context) error { l.acquired.Add(1); return nil }
func (l *countingLimiter) Release()                      { l.released.Add(1) }
