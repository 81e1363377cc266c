package dialer

import (
	"github.com/frankli0324/asynchttp/internal/dialer"
)

// Dialers are responsible for creating underlying streams that http requests could
// be written to and responses could be read from. for example, opening a raw TCP
// connection for HTTP/1.1 requests.
//
// A Dialer MUST NOT hold active connection states, which means a Dialer must be
// able to be swapped out from a Transport without pain. It SHOULD hold the
// connection related configs like [ProxyConfig] or *[crypto/tls.Config].
// Per-exchange settings (verification, client certificate, proxy, timeouts)
// arrive in the dial context, read them with [OptionsFrom].
type Dialer = dialer.Dialer

// CoreDialer is the default implementation of the [Dialer] interface. It pools
// connections per host, scheme, proxy and TLS settings.
type CoreDialer = dialer.CoreDialer

type ProxyConfig = dialer.ProxyConfig

// we need a dedicated resolver for two scenarios:
//
//  1. Resolve remote address locally in proxied requests
//  2. to customize the DNS server used for resolving hostname
//
// the standard library didn't provide a intuitive way of
// setting DNS server addresses since it only follows the
// system configuration (e.g. /etc/resolv.conf), leaving us only
// one option of using [net.Resolver.Dial] hook with a Go Resolver.
type ResolveConfig = dialer.ResolveConfig

// Options are the per-exchange settings a Transport hands its dialer.
type Options = dialer.Options

var (
	WithOptions = dialer.WithOptions
	OptionsFrom = dialer.OptionsFrom
)
