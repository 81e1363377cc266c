package asynchttp

import (
	"net/http"

	"github.com/frankli0324/asynchttp/internal/adapter"
	"github.com/frankli0324/asynchttp/internal/model"
)

type Header = http.Header
type Request = model.Request
type FormFile = model.FormFile
type Response = adapter.Response
type DownloadStream = adapter.DownloadStream
type StreamState = adapter.StreamState
type ConnectionConfig = model.ConnectionConfig

// Error carries the failure kind of an exchange along with its cause.
type Error = adapter.Error

const (
	NotStarted = adapter.NotStarted
	Streaming  = adapter.Streaming
	Exhausted  = adapter.Exhausted
	Failed     = adapter.Failed
	Closed     = adapter.Closed
)

const (
	DefaultTimeout       = model.DefaultTimeout
	DefaultDataBlockSize = model.DefaultDataBlockSize
)

// Failure kinds, match them with errors.Is.
var (
	ErrConnection      = adapter.ErrConnection
	ErrResponse        = adapter.ErrResponse
	ErrIncompleteBody  = adapter.ErrIncompleteBody
	ErrStreamConsumed  = adapter.ErrStreamConsumed
	ErrInvalidArgument = adapter.ErrInvalidArgument
)

var DefaultConnectionConfig = model.DefaultConnectionConfig
