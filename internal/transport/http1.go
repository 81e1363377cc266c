package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/transport/chunked"
)

type HTTP1 struct{}

func (t HTTP1) Write(w io.Writer, r *model.PreparedRequest) error {
	body, err := r.GetBody() // can write body
	if err != nil {
		return err
	}
	if body != nil {
		defer body.Close() // request body is ALWAYS closed
	}

	bw := bufio.NewWriter(w) // default bufsize is 4096
	if err := t.writeHeader(bw, r, body != nil && r.ContentLength == -1); err != nil {
		return err
	}
	if body != nil {
		if r.ContentLength == -1 {
			cw := chunked.NewWriter(bw)
			if _, err := io.Copy(cw, body); err != nil {
				return err
			}
			if err := cw.Close(nil); err != nil {
				return err
			}
		} else if _, err := io.CopyN(bw, body, r.ContentLength); err != nil {
			if err == io.EOF {
				err = errors.New("request body shorter than content-length")
			}
			return err
		}
	}
	return bw.Flush()
}

// writeHeader writes the status and header part of an http 1.1 request
// e.g.:
//
//	GET / HTTP/1.1\r\n
//	Host: www.google.com\r\n
//	X-Xx-Yy: cccccc\r\n
//	\r\n
func (t HTTP1) writeHeader(header *bufio.Writer, r *model.PreparedRequest, chunkedBody bool) error {
	if _, err := header.WriteString(r.Method); err != nil {
		return err
	}
	header.WriteByte(' ')
	if r.Method == http.MethodConnect && r.U.Host == "" {
		header.WriteString(r.U.Path)
	} else {
		header.WriteString(r.U.RequestURI())
	}
	header.WriteString(" HTTP/1.1\r\n")

	header.WriteString("Host: ")
	header.WriteString(r.HeaderHost)
	header.WriteString("\r\n")
	if r.ContentLength != -1 {
		header.WriteString("Content-Length: ")
		header.WriteString(strconv.FormatInt(r.ContentLength, 10))
		header.WriteString("\r\n")
	} else if chunkedBody {
		header.WriteString("Transfer-Encoding: chunked\r\n")
	}
	for k, v := range r.Header {
		for _, v := range v {
			header.WriteString(k)
			header.WriteString(": ")
			header.WriteString(v)
			if _, err := header.WriteString("\r\n"); err != nil {
				return err
			}
		}
	}
	_, err := header.WriteString("\r\n")
	return err
}

// Read parses a response from r. If r is an [io.Closer] the returned body
// owns it: a body read to the end hands r back through [Releaser] when the
// connection may be reused, every other outcome closes it.
func (t HTTP1) Read(r io.Reader, req *model.PreparedRequest, resp *model.Response) (err error) {
	var stream io.Closer = nopStream{}
	if cr, ok := r.(io.Closer); ok {
		stream = cr
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	tp := textproto.NewReader(br)

	for {
		if err := t.readHeader(tp, resp); err != nil {
			return err
		}
		// interim responses carry no body, the final one follows
		if resp.StatusCode < 100 || resp.StatusCode >= 200 || resp.StatusCode == http.StatusSwitchingProtocols {
			break
		}
	}

	return t.readTransfer(br, req, resp, stream)
}

func (t HTTP1) readHeader(tp *textproto.Reader, resp *model.Response) error {
	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	proto, status, ok := strings.Cut(line, " ")
	if !ok {
		return ErrMalformedResponse
	}
	resp.Proto = proto
	resp.Status = strings.TrimLeft(status, " ")

	statusCode, _, _ := strings.Cut(resp.Status, " ")
	if len(statusCode) != 3 {
		return fmt.Errorf("%w: status code %q", ErrMalformedResponse, statusCode)
	}
	resp.StatusCode, err = strconv.Atoi(statusCode)
	if err != nil || resp.StatusCode < 0 {
		return fmt.Errorf("%w: status code %q", ErrMalformedResponse, statusCode)
	}

	// Parse the response headers.
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if hp, ok := mimeHeader["Pragma"]; ok && len(hp) > 0 && hp[0] == "no-cache" {
		if _, presentcc := mimeHeader["Cache-Control"]; !presentcc {
			mimeHeader["Cache-Control"] = []string{"no-cache"}
		}
	}
	resp.Header = http.Header(mimeHeader)
	return nil
}

func (t HTTP1) readTransfer(r *bufio.Reader, req *model.PreparedRequest, resp *model.Response, stream io.Closer) error {
	contentLens := resp.Header["Content-Length"]

	// Hardening against HTTP request smuggling, taken from standard library
	if len(contentLens) > 1 {
		// Per RFC 7230 Section 3.3.2
		first := textproto.TrimString(contentLens[0])
		for _, ct := range contentLens[1:] {
			if first != textproto.TrimString(ct) {
				stream.Close()
				return fmt.Errorf("http: message cannot contain multiple Content-Length headers; got %q", contentLens)
			}
		}

		// deduplicate Content-Length
		resp.Header.Del("Content-Length")
		resp.Header.Add("Content-Length", first)

		contentLens = resp.Header["Content-Length"]
	}

	cl := int64(-1)
	if len(contentLens) > 0 {
		// Logic based on Content-Length
		n, err := strconv.ParseUint(textproto.TrimString(contentLens[0]), 10, 63)
		if err == nil {
			cl = int64(n)
		}
	}
	reusable := !headerHasToken(resp.Header, "Connection", "close") && resp.Proto != "HTTP/1.0"

	switch {
	case req != nil && req.Method == http.MethodHead,
		resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		resp.ContentLength = cl
		resp.Body = http.NoBody
		(&body{stream: stream, reusable: reusable}).finish(reusable)
		return nil
	case headerHasToken(resp.Header, "Transfer-Encoding", "chunked"):
		resp.ContentLength = -1
		resp.Body = &body{Reader: chunked.NewReader(r), stream: stream, reusable: reusable}
		return nil
	}

	resp.ContentLength = cl
	switch {
	case cl > 0:
		resp.Body = &body{Reader: &fixedLengthReader{r, cl}, stream: stream, reusable: reusable}
	case cl == 0:
		resp.Body = http.NoBody
		(&body{stream: stream, reusable: reusable}).finish(reusable)
	default:
		// delimited by connection close
		resp.Body = &body{Reader: r, stream: stream, reusable: false}
	}
	return nil
}

func headerHasToken(h http.Header, key, token string) bool {
	for _, v := range h[key] {
		for _, s := range strings.Split(v, ",") {
			if strings.EqualFold(textproto.TrimString(s), token) {
				return true
			}
		}
	}
	return false
}
