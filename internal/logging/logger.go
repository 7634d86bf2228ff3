package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction. Zero value logs INFO to stderr.
type Options struct {
	Level   string
	File    string
	Console bool
}

// New builds the process logger. When a log file is configured but cannot
// be opened the logger falls back to stderr instead of failing the run.
func New(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		if l, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = l
		}
	}

	var sinks []io.Writer
	if opts.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] cannot create log directory for %s: %v, logging to stderr\n", opts.File, err)
		} else if f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] cannot open log file %s: %v, logging to stderr\n", opts.File, err)
		} else {
			sinks = append(sinks, f)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}

	return zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(level).With().Timestamp().Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
