package dialer

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/netpool"
)

var schemes = map[string]string{
	"http": "80", "https": "443", "socks5": "1080", "socks5h": "1080",
}

var zeroDialer net.Dialer
var customDnsDialer = net.Dialer{
	Resolver: &customServerResolver,
}

// connections are only shared between exchanges that would have dialed
// them the same way
type poolKey struct {
	hostport, scheme, proxy string
	verify                  bool
	cert                    *tls.Certificate
}

func (d *CoreDialer) Dial(ctx context.Context, r *model.PreparedRequest) (io.ReadWriteCloser, error) {
	opts := OptionsFrom(ctx)
	addr, port := r.U.Host, schemes[r.U.Scheme]
	if add, prt, err := net.SplitHostPort(addr); err == nil {
		addr, port = add, prt
	}
	hp := net.JoinHostPort(addr, port)

	proxy := opts.Proxy
	if proxy == "" && d.GetProxy != nil {
		p, err := d.GetProxy(ctx, r.Request)
		if err != nil {
			return nil, err
		}
		proxy = p
	}
	dial := func(ctx context.Context) (conn net.Conn, err error) {
		if opts.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
			defer cancel()
		}

		conn, err = d.tryDialProxy(ctx, r, proxy)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			// if needCustomDial(d.ResolveConfig) {}
			// as of now net.Dialer could handle current DNS configurations
			network, dialer, dialctx, dst := "tcp", &zeroDialer, ctx, hp

			if rc := d.ResolveConfig; rc != nil {
				if rc.Network == "ip4" {
					network = "tcp4"
				} else if rc.Network == "ip6" {
					network = "tcp6"
				}
				if static, ok := rc.StaticHosts[addr]; ok {
					dst = net.JoinHostPort(static, port)
				}
				if dns := rc.CustomDNSServer; dns != "" {
					dialctx = dnsServerCtx{dialctx, dns}
					dialer = &customDnsDialer
				}
			}

			conn, err = dialer.DialContext(dialctx, network, dst)
		}
		if err != nil {
			return nil, err
		}
		if r.U.Scheme == "https" {
			c := tls.Client(conn, d.tlsConfig(r.U.Hostname(), opts))
			if err := c.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			conn = c
		}
		return conn, nil
	}

	var (
		c   *netpool.Conn
		err error
	)
	if d.ConnPool == nil {
		nc, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		c, err = netpool.NewPool(0, 1, 0, nil).Connect(ctx, func(context.Context) (net.Conn, error) { return nc, nil })
		if err != nil {
			return nil, err
		}
	} else {
		key := poolKey{hostport: hp, scheme: r.U.Scheme, proxy: proxy, verify: opts.Verify, cert: opts.Cert}
		if c, err = d.ConnPool.Connect(ctx, key, dial); err != nil {
			return nil, err
		}
	}
	c.SetReadTimeout(opts.ReadTimeout)
	return c, nil
}

func (d *CoreDialer) tlsConfig(serverName string, opts Options) *tls.Config {
	config := d.TLSConfig.Clone()
	if config == nil {
		config = &tls.Config{}
	}
	config.ServerName = serverName
	config.NextProtos = []string{"http/1.1"}
	if !opts.Verify {
		config.InsecureSkipVerify = true
	}
	if opts.Cert != nil {
		config.Certificates = []tls.Certificate{*opts.Cert}
	}
	return config
}
