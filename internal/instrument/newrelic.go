// Package instrument reports exchanges to an APM agent.
package instrument

import (
	"context"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/session"
)

const library = "asynchttp"

// NewRelic records every exchange as an external segment of the New Relic
// transaction found in its context, and forwards the distributed tracing
// headers to the server. Exchanges without a transaction pass through.
//
// The segment ends once the response header is read, a streamed body is
// not part of it.
func NewRelic() session.Middleware {
	return func(next session.Handler) session.Handler {
		return func(ctx context.Context, req *session.PreparedRequest) (*model.Response, error) {
			txn := newrelic.FromContext(ctx)
			if txn == nil {
				return next(ctx, req)
			}
			seg := &newrelic.ExternalSegment{
				StartTime: txn.StartSegmentNow(),
				URL:       req.U.String(),
				Host:      req.HeaderHost,
				Procedure: req.Method,
				Library:   library,
			}
			hdrs := http.Header{}
			txn.InsertDistributedTraceHeaders(hdrs)
			for k, v := range hdrs {
				req.Header[k] = v
			}

			resp, err := next(ctx, req)
			if resp != nil {
				seg.SetStatusCode(resp.StatusCode)
			}
			seg.End()
			return resp, err
		}
	}
}
