package session_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/session"
)

type CombinedReadWriteCloser struct {
	io.Reader
	io.Writer
	io.Closer
}

type TestDialer struct {
	io.ReadWriteCloser
}

// Dial implements session.Dialer.
func (t *TestDialer) Dial(ctx context.Context, r *model.PreparedRequest) (io.ReadWriteCloser, error) {
	return t.ReadWriteCloser, nil
}

// Unwrap implements session.Dialer.
func (t *TestDialer) Unwrap() session.Dialer {
	return nil
}

func SendSingleRequest(t *testing.T, req *model.Request) io.Reader {
	readResponse, writeResponse := io.Pipe()
	go io.Copy(writeResponse, strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"))

	readRequest, writeRequest := io.Pipe()
	c := &session.Client{}
	c.UseDialer(func(session.Dialer) session.Dialer {
		return &TestDialer{CombinedReadWriteCloser{
			Reader: readResponse,
			Writer: writeRequest,
			Closer: writeRequest,
		}}
	})
	go func() {
		resp, err := c.CtxDo(context.Background(), req)
		if err != nil {
			t.Error(err)
			return
		}
		resp.Body.Close()
	}()
	return readRequest
}

// replay answers every exchange with raw and records what was written.
func replay(raw string) (*session.Client, *strings.Builder) {
	written := &strings.Builder{}
	c := &session.Client{}
	c.UseDialer(func(session.Dialer) session.Dialer {
		return &TestDialer{CombinedReadWriteCloser{
			Reader: strings.NewReader(raw),
			Writer: written,
			Closer: io.NopCloser(nil),
		}}
	})
	return c, written
}
