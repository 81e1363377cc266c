// Package logger builds the zerolog logger a transport reports through.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/frankli0324/asynchttp/internal/config"
)

var levels = map[config.LogLevel]zerolog.Level{
	config.LogLevelDebug:   zerolog.DebugLevel,
	config.LogLevelInfo:    zerolog.InfoLevel,
	config.LogLevelWarning: zerolog.WarnLevel,
	config.LogLevelError:   zerolog.ErrorLevel,
}

// New returns a logger writing to cfg.Target. The returned closer releases
// the log file, it is a no-op for stderr and stdout.
func New(cfg *config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	if cfg == nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("logging configuration cannot be nil")
	}
	level, ok := levels[cfg.Level]
	if !ok {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	var out io.Writer
	var closer io.Closer = nopCloser{}
	switch cfg.Target {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file %s: %w", cfg.Target, err)
		}
		out, closer = f, f
	}

	switch cfg.Format {
	case "", config.FormatConsole:
		_, isFile := closer.(*os.File)
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: isFile}
	case config.FormatJSON:
	default:
		closer.Close()
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
