package netpool

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Conn is a connection checked out of a [Pool]. It must be handed back
// exactly once, either through Release (reusable) or Close (discarded).
type Conn struct {
	conn     net.Conn
	pool     *Pool
	reused   bool
	lastIdle time.Time

	readTimeout time.Duration
	finished    atomic.Bool
	log         *zerolog.Logger
}

// Reused reports whether the connection came from the idle list.
func (c *Conn) Reused() bool { return c.reused }

func (c *Conn) Raw() net.Conn { return c.conn }

// SetReadTimeout bounds every subsequent Read, zero disables the bound.
func (c *Conn) SetReadTimeout(d time.Duration) { c.readTimeout = d }

func (c *Conn) Write(p []byte) (n int, err error) {
	n, err = c.conn.Write(p)
	if err != nil {
		c.log.Debug().Err(err).Str("remote", c.remote()).Msg("netpool: error on write")
	}
	return
}

func (c *Conn) Read(p []byte) (n int, err error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	n, err = c.conn.Read(p)
	if err != nil && err != io.EOF {
		c.log.Debug().Err(err).Str("remote", c.remote()).Msg("netpool: error on read")
	}
	return n, err
}

// Close discards the connection.
func (c *Conn) Close() error {
	if !c.finished.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close()
	c.pool.done()
	return err
}

// Release returns the connection to its pool for reuse.
func (c *Conn) Release() {
	if !c.finished.CompareAndSwap(false, true) {
		return
	}
	c.conn.SetReadDeadline(time.Time{})
	c.pool.put(c)
}

func (c *Conn) remote() string {
	if a := c.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
