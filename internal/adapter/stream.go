package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/worker"
)

// StreamState is where a [DownloadStream] is in its life.
type StreamState int

const (
	NotStarted StreamState = iota
	Streaming
	Exhausted
	Failed
	Closed
)

func (s StreamState) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Streaming:
		return "streaming"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// DownloadStream hands out a response body chunk by chunk. It cannot be
// restarted: once it ends every Next returns io.EOF, once it fails every
// Next returns the same error.
type DownloadStream struct {
	url        string
	header     http.Header
	body       io.ReadCloser
	reader     io.Reader
	decoded    io.ReadCloser
	decompress bool
	blockSize  int
	length     int64

	state    StreamState
	consumed bool
	pending  error
	err      error

	limiter worker.Limiter
	log     zerolog.Logger
}

// StreamDownload starts streaming the body. A response whose body was
// already read replays its content, one whose body was already handed to
// another stream yields [ErrStreamConsumed], one whose body failed to read
// yields that failure.
func (r *Response) StreamDownload(opts ...StreamOption) *DownloadStream {
	o := streamOptions{decompress: true, blockSize: r.blockSize}
	for _, opt := range opts {
		opt(&o)
	}
	s := &DownloadStream{
		url:        r.Request.URL,
		header:     r.Header,
		decompress: o.decompress,
		blockSize:  o.blockSize,
		length:     declaredLength(r.Header),
		limiter:    r.limiter,
		log:        r.log,
	}
	switch {
	case r.loaded:
		s.body = io.NopCloser(bytes.NewReader(r.content))
		s.decompress = false // content is decoded already
	case r.err != nil:
		s.state, s.err = Failed, r.err
	case r.streamed:
		s.consumed = true
	default:
		r.streamed = true
		s.body = r.raw.Body
	}
	return s
}

// Len is the length the response declared when streaming began, 0 if it
// declared none. It does not change as chunks arrive.
func (s *DownloadStream) Len() int64 { return s.length }

// State reports the current state of the stream.
func (s *DownloadStream) State() StreamState { return s.state }

// Next returns the next chunk, at most the block size long. The read
// happens on a worker goroutine; cancelling ctx abandons it and closes the
// connection.
func (s *DownloadStream) Next(ctx context.Context) ([]byte, error) {
	switch s.state {
	case Exhausted, Closed:
		return nil, io.EOF
	case Failed:
		return nil, s.err
	}
	if s.consumed {
		return nil, ErrStreamConsumed
	}
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return nil, s.finish(err)
	}

	s.state = Streaming
	chunk, err := worker.Run(ctx, s.limiter, s.pull, nil)
	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		return nil, s.finish(err)
	}
	if len(chunk) > 0 {
		if err != nil {
			s.pending = err
		}
		return chunk, nil
	}
	return nil, s.finish(err)
}

// pull runs on the worker goroutine.
func (s *DownloadStream) pull() ([]byte, error) {
	if s.reader == nil {
		s.reader = s.body
		if s.decompress {
			d, err := decoder(s.body, s.header)
			if err != nil {
				return nil, err
			}
			s.decoded, s.reader = d, d
		}
	}
	buf := make([]byte, s.blockSize)
	for i := 0; i < 100; i++ {
		n, err := s.reader.Read(buf)
		if err != nil && s.decoded != nil {
			if err == io.EOF {
				// decoders may stop short of the framing
				if _, derr := io.Copy(io.Discard, s.body); derr != nil {
					err = derr
				}
			}
			s.decoded.Close()
			s.decoded = nil
		}
		if n > 0 || err != nil {
			return buf[:n], err
		}
	}
	return nil, io.ErrNoProgress
}

func (s *DownloadStream) finish(err error) error {
	if err == io.EOF {
		s.state = Exhausted
		s.body.Close()
		return io.EOF
	}
	s.log.Warn().Err(err).Str("url", s.url).Msg("unable to stream download")
	s.body.Close()
	s.state = Failed
	s.err = translate("stream", s.url, err)
	return s.err
}

// Close abandons the stream, closing the connection if the body was not
// read to the end.
func (s *DownloadStream) Close() error {
	if s.consumed || s.state == Exhausted || s.state == Failed || s.state == Closed {
		return nil
	}
	s.state = Closed
	if s.decoded != nil {
		s.decoded.Close()
	}
	return s.body.Close()
}
