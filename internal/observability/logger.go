// Package observability wires structured logging, Prometheus metrics and
// OpenTelemetry tracing for the booking services.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Format "text" switches to the console writer.
func NewLogger(cfg config.ObservabilityConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.ObservabilityConfig, out io.Writer) zerolog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "text" {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()
	return logger
}

func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
