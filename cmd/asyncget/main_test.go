package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world!"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Method + " " + r.Header.Get("X-Token") + " "))
		io.Copy(w, r.Body)
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		gw.Write([]byte("compressed body"))
		gw.Close()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runArgs(args ...string) (code int, stdout, stderr string) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	code = run(context.Background(), args, out, errOut)
	return code, out.String(), errOut.String()
}

func TestStdout(t *testing.T) {
	srv := server(t)
	code, out, _ := runArgs(srv.URL+"/hello", srv.URL+"/hello")
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world!hello world!", out)
}

func TestRequestFlags(t *testing.T) {
	srv := server(t)
	code, out, _ := runArgs("-X", "POST", "-H", "X-Token: abc", "-d", "payload", srv.URL+"/echo")
	assert.Equal(t, 0, code)
	assert.Equal(t, "POST abc payload", out)
}

func TestOutputFiles(t *testing.T) {
	srv := server(t)
	dir := t.TempDir()

	single := filepath.Join(dir, "single")
	code, _, _ := runArgs("-o", single, srv.URL+"/hello")
	require.Equal(t, 0, code)
	b, err := os.ReadFile(single)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(b))

	many := filepath.Join(dir, "many")
	code, _, _ = runArgs("-o", many, "-parallel", "2", srv.URL+"/hello", srv.URL+"/gzip")
	require.Equal(t, 0, code)
	b, err = os.ReadFile(many + ".1")
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(b))
	b, err = os.ReadFile(many + ".2")
	require.NoError(t, err)
	assert.Equal(t, "compressed body", string(b))
}

func TestRaw(t *testing.T) {
	srv := server(t)
	code, out, _ := runArgs("-raw", srv.URL+"/gzip")
	require.Equal(t, 0, code)
	r, err := gzip.NewReader(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "compressed body", string(b))
}

func TestConfigFile(t *testing.T) {
	srv := server(t)
	path := filepath.Join(t.TempDir(), "asyncget.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[connection]
read_timeout = "5s"
rate_limit = 100.0

[logging]
level = "ERROR"
`), 0o644))
	code, out, _ := runArgs("-config", path, srv.URL+"/hello")
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world!", out)
}

func TestFailures(t *testing.T) {
	srv := server(t)

	code, _, _ := runArgs(srv.URL + "/missing")
	assert.Equal(t, 1, code, "404 is a failure")

	code, _, _ = runArgs("http://127.0.0.1:1/")
	assert.Equal(t, 1, code)

	code, _, _ = runArgs("ftp://example.com/")
	assert.Equal(t, 1, code)
}

func TestUsage(t *testing.T) {
	code, _, errOut := runArgs()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "USAGE:")

	code, _, errOut = runArgs("-H", "no-colon", "http://example.com/")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "malformed header")

	code, _, _ = runArgs("-nope", "http://example.com/")
	assert.Equal(t, 2, code)

	code, _, _ = runArgs("-config", filepath.Join(t.TempDir(), "none.toml"), "http://example.com/")
	assert.Equal(t, 2, code)

	code, _, _ = runArgs("-h")
	assert.Equal(t, 0, code)
}
