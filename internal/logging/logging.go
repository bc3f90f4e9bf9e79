// Package logging provides structured logging for the mailgoat CLI built on
// zerolog. It supports console and JSON output formats, optional log files,
// per-component child loggers, and trace IDs carried through context so that
// every log line produced during one CLI invocation can be correlated.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output format names accepted in Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is a zerolog level name ("trace", "debug", "info", "warn",
	// "error"). Unparseable values fall back to info.
	Level string

	// Format selects console (human-readable) or json output.
	Format string

	// Output is "stderr" or "file". When "file", File must be set.
	Output string

	// File is the log file path used when Output is "file".
	File string

	// Caller adds file:line caller annotations to each entry.
	Caller bool
}

// Result holds the constructed logger together with file-output metadata so
// the CLI can report where logs went and close the handle on exit.
type Result struct {
	Logger zerolog.Logger

	// UsingFile reports whether log output is going to FilePath.
	UsingFile bool

	// FilePath is the resolved log file path when UsingFile is true.
	FilePath string

	// FallbackUsed reports that file output was requested but could not be
	// opened, and the logger fell back to stderr.
	FallbackUsed bool

	// FallbackReason describes why the fallback happened.
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if any.
func (r *Result) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// New constructs the root logger from cfg. File-output failures never fail
// the command: the logger falls back to stderr and the Result records why.
func New(cfg Config) Result {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	result := Result{}
	var w io.Writer = os.Stderr

	if cfg.Output == "file" && cfg.File != "" {
		if f, openErr := openLogFile(cfg.File); openErr != nil {
			result.FallbackUsed = true
			result.FallbackReason = openErr.Error()
		} else {
			result.UsingFile = true
			result.FilePath = cfg.File
			result.file = f
			w = f
		}
	}

	// Console formatting only makes sense for terminals; file output is
	// always JSON so it stays machine-parseable.
	if cfg.Format != FormatJSON && !result.UsingFile {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logCtx := zerolog.New(w).Level(lvl).With().Timestamp()
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}
	result.Logger = logCtx.Logger()
	return result
}

// openLogFile creates the parent directory and opens path for appending.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// ComponentLogger returns a child logger tagged with a component name
// ("cli", "client", "batch", ...) so log lines can be filtered per subsystem.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger when
// none was attached. Callers can rely on the result being safe to use.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
