package nettools

import (
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T) (client, server net.Conn) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()
	client, err = net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)
	return client, server
}

func TestAliveIdle(t *testing.T) {
	c, s := dialPair(t)
	defer c.Close()
	defer s.Close()
	require.True(t, Alive(c))
}

func TestAlivePeerClosed(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("no poll support")
	}
	c, s := dialPair(t)
	defer c.Close()
	s.Close()
	require.Eventually(t, func() bool { return !Alive(c) }, time.Second, 10*time.Millisecond)
}

func TestAliveUnknownConn(t *testing.T) {
	c, s := net.Pipe()
	defer c.Close()
	defer s.Close()
	require.True(t, Alive(c))
}
