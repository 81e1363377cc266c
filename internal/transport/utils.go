package transport

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// Releaser is implemented by pooled streams. Release hands the stream back
// for reuse, Close discards it.
type Releaser interface {
	Release()
}

// ErrBodyTruncated is returned by response bodies that end before their
// declared length or terminating chunk.
var ErrBodyTruncated = fmt.Errorf("transport: response body truncated: %w", io.ErrUnexpectedEOF)

// ErrMalformedResponse is returned when the status line or the header
// section cannot be parsed.
var ErrMalformedResponse = errors.New("transport: malformed HTTP response")

// body finishes the underlying stream exactly once: a fully read body
// releases a reusable stream, anything else closes it. Close may be called
// while a Read is blocked, it unblocks the Read by closing the stream.
type body struct {
	io.Reader
	stream   io.Closer
	reusable bool
	done     atomic.Bool
}

func (b *body) Read(p []byte) (n int, err error) {
	if b.done.Load() {
		return 0, io.EOF
	}
	n, err = b.Reader.Read(p)
	if err == io.EOF {
		b.finish(b.reusable)
	} else if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrBodyTruncated
		}
		b.finish(false)
	}
	return n, err
}

// Close discards whatever is left of the body along with the stream.
func (b *body) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.stream.Close()
}

func (b *body) finish(reuse bool) {
	if !b.done.CompareAndSwap(false, true) {
		return
	}
	if r, ok := b.stream.(Releaser); ok && reuse {
		r.Release()
		return
	}
	b.stream.Close()
}

// fixedLengthReader is io.LimitReader that reports an early EOF.
type fixedLengthReader struct {
	r         io.Reader
	remaining int64
}

func (f *fixedLengthReader) Read(p []byte) (n int, err error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err = f.r.Read(p)
	f.remaining -= int64(n)
	if err == io.EOF {
		if f.remaining > 0 {
			return n, io.ErrUnexpectedEOF
		}
	} else if err == nil && f.remaining == 0 {
		err = io.EOF
	}
	return n, err
}

type nopStream struct{}

func (nopStream) Close() error { return nil }
