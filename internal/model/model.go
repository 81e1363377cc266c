package model

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Request struct {
	Method string
	URL    string
	Body   interface{}
	Header http.Header

	// Files and Form are sent as a multipart/form-data body, Body must be nil
	Files []FormFile
	Form  url.Values
}

// FormFile is one file part of a multipart request body.
type FormFile struct {
	Field       string
	Name        string
	ContentType string // defaults to application/octet-stream
	Content     io.Reader
}

type Response struct {
	Proto      string
	Status     string
	StatusCode int
	Header     http.Header

	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// ConnectionConfig holds the connection level settings a blocking exchange
// is performed with. Zero values are replaced by [DefaultConnectionConfig]
// through [ConnectionConfig.WithDefaults].
type ConnectionConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	Verify *bool
	Cert   *tls.Certificate

	DataBlockSize int

	MaxConnsPerHost uint
	MaxIdlePerHost  uint
	MaxIdleDuration time.Duration

	Proxy string
}

const (
	DefaultTimeout       = 300 * time.Second
	DefaultDataBlockSize = 4096
)

func DefaultConnectionConfig() ConnectionConfig {
	verify := true
	return ConnectionConfig{
		ConnectTimeout:  DefaultTimeout,
		ReadTimeout:     DefaultTimeout,
		Verify:          &verify,
		DataBlockSize:   DefaultDataBlockSize,
		MaxConnsPerHost: 100,
		MaxIdlePerHost:  80,
		MaxIdleDuration: 90 * time.Second,
	}
}

func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	d := DefaultConnectionConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.Verify == nil {
		c.Verify = d.Verify
	}
	if c.DataBlockSize <= 0 {
		c.DataBlockSize = d.DataBlockSize
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if c.MaxIdlePerHost == 0 {
		c.MaxIdlePerHost = d.MaxIdlePerHost
	}
	if c.MaxIdleDuration == 0 {
		c.MaxIdleDuration = d.MaxIdleDuration
	}
	return c
}

func (c ConnectionConfig) VerifyTLS() bool {
	return c.Verify == nil || *c.Verify
}
