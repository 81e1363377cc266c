package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/frankli0324/asynchttp/internal/adapter"
	"github.com/frankli0324/asynchttp/internal/config"
	"github.com/frankli0324/asynchttp/internal/instrument"
	"github.com/frankli0324/asynchttp/internal/logger"
	"github.com/frankli0324/asynchttp/internal/model"
	"github.com/frankli0324/asynchttp/internal/worker"
)

const usage = `asyncget - Download URLs through an asynchronous HTTP/1.1 transport

USAGE:
   asyncget [OPTIONS]... <URL>...

OPTIONS:
   -config <FILE>
      Load connection, resolver and logging settings from a .toml,
      .yaml or .json file

   -o <FILE>
      Write the body to FILE instead of stdout. With several URLs the
      bodies go to FILE.1, FILE.2, ...

   -X <METHOD>
      Request method. Default is GET

   -H <NAME: VALUE>
      Add a request header, may be repeated

   -d <DATA>
      Send DATA as the request body

   -timeout <DURATION>
      Bound connecting and every read, e.g. 30s

   -insecure
      Do not verify the server certificate

   -raw
      Do not decode the body according to its Content-Encoding

   -parallel <NUM>
      Number of exchanges in flight at once. Default is unbounded

   -h, -help
      Show this usage information
`

type stringList []string

func (s stringList) String() string {
	return fmt.Sprintf("%v", []string(s))
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

type download struct {
	method  string
	header  http.Header
	body    string
	send    []adapter.SendOption
	stream  []adapter.StreamOption
	outputs func(i int) (io.WriteCloser, error)
	log     zerolog.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("asyncget", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() { fmt.Fprint(stderr, usage) }

	var headers stringList
	flagSet.Var(&headers, "H", "")
	configPath := flagSet.String("config", "", "")
	output := flagSet.String("o", "", "")
	method := flagSet.String("X", http.MethodGet, "")
	data := flagSet.String("d", "", "")
	timeout := flagSet.Duration("timeout", 0, "")
	insecure := flagSet.Bool("insecure", false, "")
	raw := flagSet.Bool("raw", false, "")
	parallel := flagSet.Int("parallel", 0, "")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	urls := flagSet.Args()
	if len(urls) == 0 {
		flagSet.Usage()
		return 2
	}

	header := http.Header{}
	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			fmt.Fprintf(stderr, "asyncget: malformed header %q, expected NAME: VALUE\n", h)
			return 2
		}
		header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	if *timeout < 0 || *parallel < 0 {
		fmt.Fprintln(stderr, "asyncget: -timeout and -parallel must not be negative")
		return 2
	}

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "asyncget: %v\n", err)
			return 2
		}
	}
	if *parallel > 0 {
		cfg.Connection.Parallel = *parallel
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "asyncget: %v\n", err)
		return 2
	}
	defer closer.Close()

	cc, err := cfg.ToConnectionConfig()
	if err != nil {
		log.Error().Err(err).Msg("invalid connection settings")
		return 2
	}

	d := &download{method: *method, header: header, body: *data, log: log}
	d.send = append(d.send, adapter.WithStream(true))
	if *timeout > 0 {
		d.send = append(d.send, adapter.WithTimeout(*timeout))
	}
	if *insecure {
		d.send = append(d.send, adapter.WithVerify(false))
	}
	d.stream = append(d.stream, adapter.WithDecompress(!*raw))
	d.outputs = func(i int) (io.WriteCloser, error) {
		switch {
		case *output == "":
			return nopWriteCloser{stdout}, nil
		case len(urls) == 1:
			return os.Create(*output)
		}
		return os.Create(*output + "." + strconv.Itoa(i+1))
	}

	tr := adapter.New(cc, transportOptions(cfg, log)...)
	err = tr.Run(func(tr *adapter.Transport) error {
		var g errgroup.Group
		if *output == "" {
			// bodies share stdout, keep them in order
			g.SetLimit(1)
		}
		for i, u := range urls {
			i, u := i, u
			g.Go(func() error {
				err := d.fetch(ctx, tr, i, u)
				if err != nil {
					log.Error().Err(err).Str("url", u).Msg("download failed")
				}
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		return 1
	}
	return 0
}

func transportOptions(cfg *config.Config, log zerolog.Logger) []adapter.Option {
	opts := []adapter.Option{
		adapter.WithLogger(log),
		adapter.WithResolveConfig(cfg.ToResolveConfig()),
		adapter.WithMiddleware(instrument.NewRelic()),
	}
	var limiters []worker.Limiter
	if n := cfg.Connection.Parallel; n > 0 {
		limiters = append(limiters, worker.NewSemaphore(int64(n)))
	}
	if r := cfg.Connection.RateLimit; r > 0 {
		limiters = append(limiters, worker.NewRateLimiter(r, int(r)))
	}
	if len(limiters) > 0 {
		opts = append(opts, adapter.WithLimiter(worker.Chain(limiters...)))
	}
	return opts
}

func (d *download) fetch(ctx context.Context, tr *adapter.Transport, i int, url string) error {
	req := &model.Request{Method: d.method, URL: url, Header: d.header.Clone()}
	if d.body != "" {
		req.Body = d.body
	}
	start := time.Now()
	resp, err := tr.Send(ctx, req, d.send...)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		resp.Close()
		return fmt.Errorf("server returned %s", resp.Status)
	}

	out, err := d.outputs(i)
	if err != nil {
		resp.Close()
		return err
	}
	defer out.Close()

	s := resp.StreamDownload(d.stream...)
	defer s.Close()
	var written int64
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n, err := out.Write(chunk)
		written += int64(n)
		if err != nil {
			return err
		}
	}
	d.log.Info().Str("url", url).Int("status", resp.StatusCode).
		Int64("declared", s.Len()).Int64("written", written).
		Dur("elapsed", time.Since(start)).Msg("downloaded")
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
