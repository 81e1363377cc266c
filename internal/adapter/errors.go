package adapter

import (
	"errors"
	"fmt"

	"github.com/frankli0324/asynchttp/internal/session"
	"github.com/frankli0324/asynchttp/internal/transport"
	"github.com/frankli0324/asynchttp/internal/transport/chunked"
)

// Failure kinds. Every error returned by a [Transport] matches exactly one
// of them with errors.Is.
var (
	// ErrConnection: the peer was never reached, or the request could not
	// be written to it.
	ErrConnection = errors.New("connection failure")
	// ErrResponse: the request went out but no complete response came back,
	// including read timeouts and cancellation while waiting.
	ErrResponse = errors.New("response failure")
	// ErrIncompleteBody: the body ended before its declared length or its
	// terminating chunk.
	ErrIncompleteBody = errors.New("incomplete body")
	// ErrStreamConsumed is returned as is when a body is iterated twice.
	ErrStreamConsumed = errors.New("response body already consumed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries the failure kind along with the underlying cause.
type Error struct {
	Kind error
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

func invalidArgument(op, msg string) error {
	return &Error{Kind: ErrInvalidArgument, Op: op, Err: errors.New(msg)}
}

// translate maps anything the blocking exchange or a body read returned to
// exactly one failure kind. Already translated errors pass through.
func translate(op, url string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) || err == ErrStreamConsumed {
		return err
	}
	return &Error{Kind: classify(err), Op: op, URL: url, Err: err}
}

func classify(err error) error {
	var se *session.Error
	if errors.As(err, &se) {
		switch se.Phase {
		case session.PhasePrepare:
			return ErrInvalidArgument
		case session.PhaseDial, session.PhaseWrite:
			return ErrConnection
		}
	}
	if errors.Is(err, transport.ErrBodyTruncated) || errors.Is(err, chunked.ErrMalformed) {
		return ErrIncompleteBody
	}
	return ErrResponse
}
