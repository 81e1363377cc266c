// Package config loads transport settings from a TOML, YAML or JSON file.
package config

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/frankli0324/asynchttp/internal/dialer"
	"github.com/frankli0324/asynchttp/internal/model"
)

// LogLevel defines the minimum severity written to the log.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config is the top-level configuration structure.
type Config struct {
	Connection *ConnectionConfig `json:"connection,omitempty" toml:"connection,omitempty" yaml:"connection,omitempty"`
	Resolve    *ResolveConfig    `json:"resolve,omitempty" toml:"resolve,omitempty" yaml:"resolve,omitempty"`
	Logging    *LoggingConfig    `json:"logging,omitempty" toml:"logging,omitempty" yaml:"logging,omitempty"`
}

// ConnectionConfig mirrors [model.ConnectionConfig] in file form. Unset
// fields keep the transport defaults.
type ConnectionConfig struct {
	ConnectTimeout  *Duration `json:"connect_timeout,omitempty" toml:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	ReadTimeout     *Duration `json:"read_timeout,omitempty" toml:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	Verify          *bool     `json:"verify,omitempty" toml:"verify,omitempty" yaml:"verify,omitempty"`
	CertFile        string    `json:"cert_file,omitempty" toml:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile         string    `json:"key_file,omitempty" toml:"key_file,omitempty" yaml:"key_file,omitempty"`
	DataBlockSize   *int      `json:"data_block_size,omitempty" toml:"data_block_size,omitempty" yaml:"data_block_size,omitempty"`
	MaxConnsPerHost *uint     `json:"max_conns_per_host,omitempty" toml:"max_conns_per_host,omitempty" yaml:"max_conns_per_host,omitempty"`
	MaxIdlePerHost  *uint     `json:"max_idle_per_host,omitempty" toml:"max_idle_per_host,omitempty" yaml:"max_idle_per_host,omitempty"`
	MaxIdleDuration *Duration `json:"max_idle_duration,omitempty" toml:"max_idle_duration,omitempty" yaml:"max_idle_duration,omitempty"`
	Proxy           string    `json:"proxy,omitempty" toml:"proxy,omitempty" yaml:"proxy,omitempty"`
	// Parallel bounds the exchanges in flight, 0 means unbounded
	Parallel int `json:"parallel,omitempty" toml:"parallel,omitempty" yaml:"parallel,omitempty"`
	// RateLimit bounds the exchanges started per second, 0 means unbounded
	RateLimit float64 `json:"rate_limit,omitempty" toml:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// ResolveConfig holds the DNS settings of the dialer.
type ResolveConfig struct {
	DNSServer   string            `json:"dns_server,omitempty" toml:"dns_server,omitempty" yaml:"dns_server,omitempty"`
	Network     string            `json:"network,omitempty" toml:"network,omitempty" yaml:"network,omitempty"` // "ip4", "ip6" or empty
	StaticHosts map[string]string `json:"static_hosts,omitempty" toml:"static_hosts,omitempty" yaml:"static_hosts,omitempty"`
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	Level  LogLevel `json:"level,omitempty" toml:"level,omitempty" yaml:"level,omitempty"`
	Target string   `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"` // "stderr", "stdout" or an absolute file path
	Format string   `json:"format,omitempty" toml:"format,omitempty" yaml:"format,omitempty"` // "json" or "console"
}

// Duration is a time.Duration written as a Go duration string, e.g. "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return errors.New("duration string cannot be empty")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration string %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration should be a string", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration should be a string, got %s", string(b))
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Load reads the file at path, picking the decoder by extension, then
// applies defaults and validates the result. Unknown keys are errors.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("configuration file path cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml"
// or ".json").
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document decodes to io.EOF
		if err := dec.Decode(cfg); err != nil && len(bytes.TrimSpace(data)) != 0 {
			return nil, err
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", ext)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in the sections and logging fields left unset.
func (c *Config) ApplyDefaults() {
	if c.Connection == nil {
		c.Connection = &ConnectionConfig{}
	}
	if c.Resolve == nil {
		c.Resolve = &ResolveConfig{}
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Target == "" {
		c.Logging.Target = "stderr"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = FormatConsole
	}
}

// Validate expects ApplyDefaults to have been called.
func (c *Config) Validate() error {
	conn := c.Connection
	for name, d := range map[string]*Duration{
		"connection.connect_timeout":   conn.ConnectTimeout,
		"connection.read_timeout":      conn.ReadTimeout,
		"connection.max_idle_duration": conn.MaxIdleDuration,
	} {
		if d != nil && *d <= 0 {
			return fmt.Errorf("%s: duration must be positive, got %q", name, d.Duration())
		}
	}
	if conn.DataBlockSize != nil && *conn.DataBlockSize <= 0 {
		return fmt.Errorf("connection.data_block_size: must be positive, got %d", *conn.DataBlockSize)
	}
	if (conn.CertFile == "") != (conn.KeyFile == "") {
		return errors.New("connection.cert_file and connection.key_file must be set together")
	}
	if conn.Parallel < 0 {
		return fmt.Errorf("connection.parallel: must not be negative, got %d", conn.Parallel)
	}
	if conn.RateLimit < 0 {
		return fmt.Errorf("connection.rate_limit: must not be negative, got %v", conn.RateLimit)
	}

	switch c.Resolve.Network {
	case "", "ip4", "ip6":
	default:
		return fmt.Errorf("resolve.network: must be ip4 or ip6, got %q", c.Resolve.Network)
	}

	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if t := c.Logging.Target; t != "stderr" && t != "stdout" && !filepath.IsAbs(t) {
		return fmt.Errorf("logging.target: must be stderr, stdout or an absolute path, got %q", t)
	}
	if f := c.Logging.Format; f != FormatJSON && f != FormatConsole {
		return fmt.Errorf("logging.format: must be json or console, got %q", f)
	}
	return nil
}

// ToConnectionConfig converts the connection section, loading the client
// certificate if one is configured. Defaults are applied.
func (c *Config) ToConnectionConfig() (model.ConnectionConfig, error) {
	var cc model.ConnectionConfig
	conn := c.Connection
	if conn == nil {
		return cc.WithDefaults(), nil
	}
	if conn.ConnectTimeout != nil {
		cc.ConnectTimeout = conn.ConnectTimeout.Duration()
	}
	if conn.ReadTimeout != nil {
		cc.ReadTimeout = conn.ReadTimeout.Duration()
	}
	if conn.MaxIdleDuration != nil {
		cc.MaxIdleDuration = conn.MaxIdleDuration.Duration()
	}
	if conn.DataBlockSize != nil {
		cc.DataBlockSize = *conn.DataBlockSize
	}
	if conn.MaxConnsPerHost != nil {
		cc.MaxConnsPerHost = *conn.MaxConnsPerHost
	}
	if conn.MaxIdlePerHost != nil {
		cc.MaxIdlePerHost = *conn.MaxIdlePerHost
	}
	cc.Verify = conn.Verify
	cc.Proxy = conn.Proxy
	if conn.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(conn.CertFile, conn.KeyFile)
		if err != nil {
			return cc, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cc.Cert = &cert
	}
	return cc.WithDefaults(), nil
}

// ToResolveConfig returns nil when no resolver setting is present.
func (c *Config) ToResolveConfig() *dialer.ResolveConfig {
	r := c.Resolve
	if r == nil || (r.DNSServer == "" && r.Network == "" && len(r.StaticHosts) == 0) {
		return nil
	}
	return &dialer.ResolveConfig{
		CustomDNSServer: r.DNSServer,
		Network:         r.Network,
		StaticHosts:     r.StaticHosts,
	}
}
