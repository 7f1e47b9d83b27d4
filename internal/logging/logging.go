// Package logging builds the zerolog loggers used across the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config contains logger configuration options.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error, disabled).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error disabled off"`

	// Format is the output format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console pretty"`

	// Output is the output destination (stderr, stdout).
	Output string `mapstructure:"output" validate:"oneof=stderr stdout"`
}

// DefaultConfig returns the configuration used when nothing is set. Records
// go to stdout, so diagnostics default to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}

// New creates a logger writing to the configured destination. Console
// output is colored only when the destination is a terminal.
func New(cfg Config) zerolog.Logger {
	out := os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		out = os.Stdout
	}
	return newLogger(cfg, out, isatty.IsTerminal(out.Fd()))
}

// NewWithWriter creates a logger writing to w without terminal colors.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	return newLogger(cfg, w, false)
}

func newLogger(cfg Config, w io.Writer, color bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !color,
			TimeFormat: time.Kitchen,
		}
	}

	level := ParseLevel(cfg.Level)
	// The global level filters before the logger's own; trace is below its
	// default.
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to
// warn.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}
