package dialer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/transport"
)

type ProxyConfig struct {
	TLSConfig      *tls.Config // the [*tls.Config] to use with proxy, if nil, *[CoreDialer.TLSConfig] will be used
	ResolveLocally bool
	ResolveConfig  *ResolveConfig // overrides the resolver config for dialer for proxy
}

func (c *ProxyConfig) Clone() *ProxyConfig {
	if c == nil {
		return nil
	}
	return &ProxyConfig{
		TLSConfig:      c.TLSConfig.Clone(),
		ResolveLocally: c.ResolveLocally,
		ResolveConfig:  c.ResolveConfig.Clone(),
	}
}

var (
	h1Transport = transport.HTTP1{}
)

func (d *CoreDialer) tryDialProxy(ctx context.Context, r *model.PreparedRequest, proxy string) (net.Conn, error) {
	if proxy == "" {
		return nil, nil
	}
	proxyU, err := url.Parse(proxy)
	if err != nil {
		return nil, err
	}
	return d.DialContextOverProxy(ctx, r.U, proxyU)
}

// DialContextOverProxy creates a connection over http/socks proxy.
// This part of logic may be reused when wrapping *[CoreDialer] into
// a new custom [Dialer]
func (d *CoreDialer) DialContextOverProxy(ctx context.Context, remote, proxyU *url.URL) (net.Conn, error) {
	hp := proxyU.Host
	if proxyU.Port() == "" {
		hp = net.JoinHostPort(proxyU.Hostname(), schemes[proxyU.Scheme])
	}

	addr, port := remote.Host, schemes[remote.Scheme]
	if add, prt, err := net.SplitHostPort(addr); err == nil {
		addr, port = add, prt
	}

	pc := d.ProxyConfig
	if pc == nil {
		pc = &ProxyConfig{}
	}
	if pc.ResolveLocally || proxyU.Scheme == "socks5" {
		dnsCfg := pc.ResolveConfig.Merge(d.ResolveConfig)
		if dnsCfg == nil {
			dnsCfg = &ResolveConfig{}
		}
		if res, ok := dnsCfg.StaticHosts[addr]; ok {
			addr = res
		} else if net.ParseIP(addr) == nil {
			ips, err := d.lookup(ctx, dnsCfg, addr)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
			}
			addr = ips[rand.Intn(len(ips))].String()
		}
	}

	switch proxyU.Scheme {
	case "socks5", "socks5h": // socks5h resolves remotely
		return d.dialSocks(ctx, hp, proxyU, net.JoinHostPort(addr, port))
	case "http", "https":
	default:
		return nil, errors.New("unsupported proxy scheme:" + proxyU.Scheme)
	}

	conn, err := zeroDialer.DialContext(ctx, "tcp", hp)
	if err != nil {
		return nil, err
	}

	if proxyU.Scheme == "https" {
		tlsCfg := pc.TLSConfig
		if tlsCfg == nil {
			tlsCfg = d.TLSConfig
		}
		tlsCfg = tlsCfg.Clone()
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = proxyU.Hostname()
		}
		c := tls.Client(conn, tlsCfg)
		if err := c.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = c
	}

	connReq := &model.PreparedRequest{
		Request:       &model.Request{Method: http.MethodConnect},
		HeaderHost:    remote.Host,
		U:             &url.URL{Path: net.JoinHostPort(addr, port)},
		GetBody:       func() (io.ReadCloser, error) { return nil, nil },
		ContentLength: -1,
	}
	if auth := proxyU.User.String(); auth != "" {
		connReq.Header = http.Header{
			"Proxy-Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte(auth))},
		}
	}
	if err := h1Transport.Write(conn, connReq); err != nil {
		conn.Close()
		return nil, err
	}
	resp := &model.Response{}
	// the body must not own conn, it becomes the tunnel
	if err := h1Transport.Read(struct{ io.Reader }{conn}, connReq, resp); err != nil {
		conn.Close()
		return nil, err
	}
	if resp.StatusCode != 200 {
		s, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		conn.Close()
		return nil, fmt.Errorf("proxy server returned error. status:%d, body:%s", resp.StatusCode, string(s))
	}
	return conn, nil
}

func (d *CoreDialer) dialSocks(ctx context.Context, proxyAddr string, proxyU *url.URL, dst string) (net.Conn, error) {
	var auth *proxy.Auth
	if u := proxyU.User; u != nil {
		auth = &proxy.Auth{User: u.Username()}
		auth.Password, _ = u.Password()
	}
	socks, err := proxy.SOCKS5("tcp", proxyAddr, auth, &zeroDialer)
	if err != nil {
		return nil, err
	}
	if cd, ok := socks.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", dst)
	}
	return socks.Dial("tcp", dst)
}
