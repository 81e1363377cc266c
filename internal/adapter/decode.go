package adapter

import (
	"bufio"
	"io"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// decoder undoes the last content coding of a response body. Unknown
// codings are left alone, an empty body decodes to an empty body.
func decoder(body io.Reader, header http.Header) (io.ReadCloser, error) {
	coding := contentEncoding(header)
	switch coding {
	case "gzip", "x-gzip", "deflate", "zstd":
	default:
		return io.NopCloser(body), nil
	}
	if body == http.NoBody {
		return http.NoBody, nil
	}
	br := bufio.NewReader(body)
	if _, err := br.Peek(1); err == io.EOF {
		return http.NoBody, nil
	} else if err != nil {
		return nil, err
	}

	switch coding {
	case "deflate":
		return zlib.NewReader(br)
	case "zstd":
		d, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	}
	return gzip.NewReader(br)
}

func contentEncoding(header http.Header) string {
	codings := header.Values("Content-Encoding")
	if len(codings) == 0 {
		return ""
	}
	last := codings[len(codings)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	return strings.ToLower(textproto.TrimString(last))
}

// readContent reads body to the end, decoding it if asked to, and always
// closes it.
func readContent(body io.ReadCloser, header http.Header, decompress bool) ([]byte, error) {
	defer body.Close()
	var r io.Reader = body
	if decompress {
		d, err := decoder(body, header)
		if err != nil {
			return nil, err
		}
		defer d.Close()
		r = d
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// a decoder may stop short of the framing, drain it so the
	// connection can be reused
	_, err = io.Copy(io.Discard, body)
	return b, err
}
