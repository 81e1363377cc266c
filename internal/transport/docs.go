// package transport implements the HTTP/1.1 message syntax (RFC9112) on top
// of an abstract stream handed out by a dialer.
//
// The "semantics" part is reused from net/http ([net/http.Header], status
// texts, [net/http.NoBody]), only framing lives here: request serialization,
// status line and header parsing, and the body length rules (Content-Length,
// chunked, read until close).
//
// A response body owns the stream it is read from. Reading it to the end
// hands a reusable stream back through [Releaser], closing it early or
// failing to read it closes the stream.

package transport
