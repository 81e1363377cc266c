package model

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareDefaults(t *testing.T) {
	r := &Request{URL: "http://example.com/a?b=c"}
	pr, err := r.Prepare()
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, pr.Method)
	assert.Equal(t, "example.com", pr.HeaderHost)
	assert.EqualValues(t, -1, pr.ContentLength)
	assert.Equal(t, "", r.Method, "the caller's request is left alone")

	body, err := pr.GetBody()
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestPrepareInvalid(t *testing.T) {
	cases := map[string]*Request{
		"Method":      {Method: "GE T", URL: "http://example.com/"},
		"URL":         {URL: "::"},
		"Scheme":      {URL: "ftp://example.com/"},
		"EmptyHost":   {URL: "http:///path"},
		"HeaderName":  {URL: "http://example.com/", Header: http.Header{"Bad Name": {"v"}}},
		"HeaderValue": {URL: "http://example.com/", Header: http.Header{"X-Bad": {"a\r\nb"}}},
		"BodyType":    {URL: "http://example.com/", Body: 42},
		"Length":      {URL: "http://example.com/", Body: "abc", Header: http.Header{"Content-Length": {"4"}}},
		"Exclusive":   {URL: "http://example.com/", Body: "abc", Form: url.Values{"a": {"b"}}},
		"NoContent":   {URL: "http://example.com/", Files: []FormFile{{Field: "f", Name: "f.txt"}}},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Prepare()
			assert.Error(t, err)
		})
	}
}

func TestPrepareHostAndLengthHeaders(t *testing.T) {
	pr, err := (&Request{
		Method: "POST",
		URL:    "http://127.0.0.1:8080/",
		Body:   "abc",
		Header: http.Header{"Host": {"example.com"}, "Content-Length": {"3"}},
	}).Prepare()
	require.NoError(t, err)
	assert.Equal(t, "example.com", pr.HeaderHost)
	assert.EqualValues(t, 3, pr.ContentLength)
	assert.NotContains(t, pr.Header, "Host")
	assert.NotContains(t, pr.Header, "Content-Length")
}

func TestPrepareBodies(t *testing.T) {
	cases := map[string]struct {
		body   interface{}
		length int64
	}{
		"String":        {"hello", 5},
		"Bytes":         {[]byte("hello"), 5},
		"Buffer":        {bytes.NewBufferString("hello"), 5},
		"BytesReader":   {bytes.NewReader([]byte("hello")), 5},
		"StringsReader": {strings.NewReader("hello"), 5},
		"Unsized":       {io.MultiReader(strings.NewReader("hel"), strings.NewReader("lo")), -1},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			pr, err := (&Request{Method: "PUT", URL: "http://example.com/", Body: c.body}).Prepare()
			require.NoError(t, err)
			assert.Equal(t, c.length, pr.ContentLength)
			rc, err := pr.GetBody()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(b))
		})
	}
}

func TestPrepareReaderBodyOnce(t *testing.T) {
	f, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer f.Close()
	pr, err := (&Request{Method: "POST", URL: "http://example.com/", Body: io.Reader(f)}).Prepare()
	require.NoError(t, err)
	_, err = pr.GetBody()
	require.NoError(t, err)
	_, err = pr.GetBody()
	assert.ErrorIs(t, err, http.ErrBodyReadAfterClose)
}

func TestPrepareEmptyPost(t *testing.T) {
	pr, err := (&Request{Method: "POST", URL: "http://example.com/"}).Prepare()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pr.ContentLength)
}

func TestPrepareMultipart(t *testing.T) {
	pr, err := (&Request{
		Method: "POST",
		URL:    "http://example.com/upload",
		Form:   url.Values{"note": {"first"}},
		Files:  []FormFile{{Field: "file", Name: `a"b.txt`, Content: strings.NewReader("content")}},
	}).Prepare()
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(pr.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	rc, err := pr.GetBody()
	require.NoError(t, err)
	form, err := multipart.NewReader(rc, params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, form.Value["note"])
	require.Len(t, form.File["file"], 1)
	fh := form.File["file"][0]
	assert.Equal(t, `a"b.txt`, fh.Filename)
	assert.Equal(t, "application/octet-stream", fh.Header.Get("Content-Type"))
	assert.EqualValues(t, len("content"), fh.Size)
}

func TestConnectionConfigDefaults(t *testing.T) {
	off := false
	c := ConnectionConfig{ReadTimeout: 5, Verify: &off, DataBlockSize: -1}.WithDefaults()
	assert.EqualValues(t, 5, c.ReadTimeout)
	assert.Equal(t, DefaultTimeout, c.ConnectTimeout)
	assert.Equal(t, DefaultDataBlockSize, c.DataBlockSize)
	assert.False(t, c.VerifyTLS())
	assert.True(t, ConnectionConfig{}.VerifyTLS())
}
