package netpool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PoolGroup keeps one [Pool] per key, usually host:port.
type PoolGroup struct {
	sync.RWMutex
	pools  map[interface{}]*Pool
	closed bool

	maxConnsPerHost, maxIdlePerHost uint
	maxIdleDuration                 time.Duration
	log                             *zerolog.Logger
}

func NewGroup(maxConnsPerHost, maxIdlePerHost uint, maxIdleDuration time.Duration, log *zerolog.Logger) *PoolGroup {
	return &PoolGroup{
		pools:           map[interface{}]*Pool{},
		maxConnsPerHost: maxConnsPerHost, maxIdlePerHost: maxIdlePerHost,
		maxIdleDuration: maxIdleDuration,
		log:             log,
	}
}

func (g *PoolGroup) Connect(ctx context.Context, key interface{}, dial func(ctx context.Context) (net.Conn, error)) (*Conn, error) {
	g.RLock()
	p, ok := g.pools[key]
	g.RUnlock()
	if ok {
		return p.Connect(ctx, dial)
	}
	g.Lock()
	if p, ok = g.pools[key]; !ok {
		p = NewPool(g.maxIdlePerHost, g.maxConnsPerHost, g.maxIdleDuration, g.log)
		if g.closed {
			p.Close()
		}
		g.pools[key] = p
	}
	g.Unlock()
	return p.Connect(ctx, dial)
}

// Idle reports the idle connections kept for key.
func (g *PoolGroup) Idle(key interface{}) int {
	g.RLock()
	p, ok := g.pools[key]
	g.RUnlock()
	if !ok {
		return 0
	}
	return p.Idle()
}

func (g *PoolGroup) Close() error {
	g.Lock()
	defer g.Unlock()
	g.closed = true
	for _, p := range g.pools {
		p.Close()
	}
	return nil
}
