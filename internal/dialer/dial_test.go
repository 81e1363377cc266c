package dialer

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/netpool"
	"github.com/frankli0324/asynchttp/internal/transport"
)

func roundTrip(t *testing.T, ctx context.Context, d Dialer, rawURL string) (*model.Response, error) {
	t.Helper()
	pr, err := (&model.Request{URL: rawURL}).Prepare()
	require.NoError(t, err)
	conn, err := d.Dial(ctx, pr)
	if err != nil {
		return nil, err
	}
	if err := (transport.HTTP1{}).Write(conn, pr); err != nil {
		conn.Close()
		return nil, err
	}
	resp := &model.Response{}
	if err := (transport.HTTP1{}).Read(conn, pr, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func body(t *testing.T, resp *model.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func hello(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("hello " + r.Host))
}

func TestDialPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(hello))
	defer srv.Close()

	d := &CoreDialer{}
	resp, err := roundTrip(t, context.Background(), d, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello "+srv.Listener.Addr().String(), body(t, resp))
}

func TestDialStaticHostsAndVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(hello))
	defer srv.Close()
	_, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	target := "https://example.com:" + port + "/"

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	d := &CoreDialer{
		TLSConfig:     &tls.Config{RootCAs: roots},
		ResolveConfig: &ResolveConfig{StaticHosts: map[string]string{"example.com": "127.0.0.1"}},
	}
	resp, err := roundTrip(t, context.Background(), d, target)
	require.NoError(t, err)
	assert.Equal(t, "hello example.com:"+port, body(t, resp))

	// the test certificate does not cover this name
	d.ResolveConfig.StaticHosts = map[string]string{"example.org": "127.0.0.1"}
	_, err = roundTrip(t, context.Background(), d, "https://example.org:"+port+"/")
	var verr *tls.CertificateVerificationError
	assert.ErrorAs(t, err, &verr)

	ctx := WithOptions(context.Background(), Options{Verify: false})
	resp, err = roundTrip(t, ctx, d, "https://example.org:"+port+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body(t, resp)
}

func TestDialClientCert(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.TLS.PeerCertificates[0].Subject.Organization[0]))
	}))
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.StartTLS()
	defer srv.Close()

	d := &CoreDialer{}
	ctx := WithOptions(context.Background(), Options{Verify: false})
	_, err := roundTrip(t, ctx, d, srv.URL+"/")
	require.Error(t, err, "handshake must fail without a client certificate")

	// reuse the server's own certificate as the client's
	cert := srv.TLS.Certificates[0]
	ctx = WithOptions(context.Background(), Options{Verify: false, Cert: &cert})
	resp, err := roundTrip(t, ctx, d, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "Acme Co", body(t, resp))
}

// connectProxy tunnels CONNECT requests carrying the expected credentials.
func connectProxy(t *testing.T, auth string) (addr string, tunnels *atomic.Int32) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	tunnels = &atomic.Int32{}
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				req, err := http.ReadRequest(bufio.NewReader(c))
				if err != nil || req.Method != http.MethodConnect {
					return
				}
				if req.Header.Get("Proxy-Authorization") != auth {
					io.WriteString(c, "HTTP/1.1 407 Proxy Authentication Required\r\nContent-Length: 6\r\n\r\ndenied")
					return
				}
				upstream, err := net.Dial("tcp", req.URL.Host)
				if err != nil {
					io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
					return
				}
				defer upstream.Close()
				tunnels.Add(1)
				io.WriteString(c, "HTTP/1.1 200 Connection established\r\n\r\n")
				go io.Copy(upstream, c)
				io.Copy(c, upstream)
			}(c)
		}
	}()
	return l.Addr().String(), tunnels
}

func TestDialHTTPProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(hello))
	defer srv.Close()
	proxyAddr, tunnels := connectProxy(t, "Basic dXNlcjpwYXNz") // user:pass

	d := &CoreDialer{}
	ctx := WithOptions(context.Background(), Options{Proxy: "http://user:pass@" + proxyAddr})
	resp, err := roundTrip(t, ctx, d, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "hello "+srv.Listener.Addr().String(), body(t, resp))
	assert.EqualValues(t, 1, tunnels.Load())

	ctx = WithOptions(context.Background(), Options{Proxy: "http://" + proxyAddr})
	_, err = roundTrip(t, ctx, d, srv.URL+"/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status:407")
	assert.Contains(t, err.Error(), "denied")
}

func TestDialGetProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(hello))
	defer srv.Close()
	proxyAddr, tunnels := connectProxy(t, "")

	var asked *model.Request
	d := &CoreDialer{GetProxy: func(ctx context.Context, r *model.Request) (string, error) {
		asked = r
		return "http://" + proxyAddr, nil
	}}
	resp, err := roundTrip(t, context.Background(), d, srv.URL+"/")
	require.NoError(t, err)
	body(t, resp)
	require.NotNil(t, asked)
	assert.Equal(t, srv.URL+"/", asked.URL)
	assert.EqualValues(t, 1, tunnels.Load())
}

func TestDialUnsupportedProxy(t *testing.T) {
	d := &CoreDialer{}
	ctx := WithOptions(context.Background(), Options{Proxy: "ftp://127.0.0.1:21"})
	_, err := roundTrip(t, ctx, d, "http://example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported proxy scheme")
}

func TestDialConnectTimeout(t *testing.T) {
	d := &CoreDialer{}
	ctx := WithOptions(context.Background(), Options{ConnectTimeout: time.Nanosecond})
	// 192.0.2.0/24 is reserved for documentation and never answers
	_, err := roundTrip(t, ctx, d, "http://192.0.2.1/")
	require.Error(t, err)
}

func TestDialPooled(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(hello))
	srv.Config.ConnState = func(_ net.Conn, s http.ConnState) {
		if s == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	log := zerolog.Nop()
	d := &CoreDialer{ConnPool: netpool.NewGroup(4, 4, time.Minute, &log)}
	defer d.ConnPool.Close()
	for i := 0; i < 3; i++ {
		resp, err := roundTrip(t, context.Background(), d, srv.URL+"/")
		require.NoError(t, err)
		body(t, resp)
	}
	assert.EqualValues(t, 1, conns.Load())

	// a different verification setting never shares a connection
	ctx := WithOptions(context.Background(), Options{Verify: false})
	resp, err := roundTrip(t, ctx, d, srv.URL+"/")
	require.NoError(t, err)
	body(t, resp)
	assert.EqualValues(t, 2, conns.Load())
}

func TestOptionsFrom(t *testing.T) {
	assert.Equal(t, Options{Verify: true}, OptionsFrom(context.Background()))
	o := Options{Proxy: "socks5://127.0.0.1:1080", ReadTimeout: time.Second}
	assert.Equal(t, o, OptionsFrom(WithOptions(context.Background(), o)))
}

func TestResolveConfigMerge(t *testing.T) {
	var nilCfg *ResolveConfig
	assert.Nil(t, nilCfg.Merge(nil))

	fallback := &ResolveConfig{CustomDNSServer: "1.1.1.1:53", Network: "ip4"}
	merged := (&ResolveConfig{Network: "ip6"}).Merge(fallback)
	assert.Equal(t, "1.1.1.1:53", merged.CustomDNSServer)
	assert.Equal(t, "ip6", merged.Network)

	u, _ := url.Parse("socks5h://user:pw@127.0.0.1")
	assert.Equal(t, "1080", schemes[u.Scheme])
}
