// Package nettools inspects pooled connections at the file descriptor level.
package nettools

import (
	"net"
	"syscall"
)

// Alive reports whether an idle connection may still be written to. An idle
// HTTP/1.1 connection must have nothing to read: readable means the peer
// either closed it or sent bytes nobody asked for. Connections whose
// descriptor is unreachable are assumed alive.
func Alive(c net.Conn) bool {
	rc := connToFD(c)
	if rc == nil {
		return true
	}
	alive := true
	// It's annoying that golang docs didn't specify whether the
	// control action will be executed if error occurrs
	// however according to the source code errors would only
	// happen before the control action, here's an example on *[net.conn]:
	//
	//  if err := fd.incref(); err != nil {
	//  	return err
	//  }
	//  defer fd.decref()
	//  f(uintptr(fd.Sysfd))
	//  return nil
	if err := rc.Control(func(fd uintptr) {
		alive = !pollReadable(int(fd))
	}); err != nil {
		return false
	}
	return alive
}

func connToFD(raw net.Conn) syscall.RawConn {
	if t, ok := raw.(interface{ NetConn() net.Conn }); ok {
		// is *tls.Conn or polyfilled TLS Connection
		raw = t.NetConn()
	}
	if c, ok := raw.(syscall.Conn); ok {
		if c, err := c.SyscallConn(); err == nil {
			return c
		}
	}
	return nil
}
