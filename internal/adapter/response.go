package adapter

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/worker"
)

// Response is the result of a [Transport.Send]. Its body is either already
// read (the default) or waiting to be streamed.
type Response struct {
	Request    *model.Request
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	// ID identifies the exchange in log lines
	ID string

	raw       *model.Response
	content   []byte
	loaded    bool
	streamed  bool
	err       error
	limiter   worker.Limiter
	blockSize int
	log       zerolog.Logger
}

// Content returns the decoded body, reading it first when the response was
// sent with [WithStream]. It fails with [ErrStreamConsumed] once a stream
// has taken the body.
func (r *Response) Content(ctx context.Context) ([]byte, error) {
	if r.loaded {
		return r.content, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.streamed {
		return nil, ErrStreamConsumed
	}
	content, err := worker.Run(ctx, r.limiter, func() ([]byte, error) {
		return readContent(r.raw.Body, r.raw.Header, true)
	}, nil)
	if err != nil {
		r.raw.Body.Close()
		r.err = translate("read", r.Request.URL, err)
		return nil, r.err
	}
	r.content, r.loaded = content, true
	return content, nil
}

func (r *Response) Text(ctx context.Context) (string, error) {
	b, err := r.Content(ctx)
	return string(b), err
}

// Close discards an unread body along with its connection.
func (r *Response) Close() error {
	return r.raw.Body.Close()
}

// ContentLength is the length declared by the Content-Length header, 0
// when there is none.
func (r *Response) ContentLength() int64 {
	return declaredLength(r.Header)
}

func declaredLength(h http.Header) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(h.Get("Content-Length")), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
