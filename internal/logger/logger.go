// Package logger provides a small, centralized leveled logging facade
// over zerolog.
//
// Call sites use printf-style helpers (Errorf, Warnf, Infof, Debugf, Tracef)
// and never touch zerolog directly; output format and verbosity are chosen
// once at startup.
//
// Verbosity levels (in increasing order):
//
//	Error < Warn < Info < Debug < Trace
//
// Example usage:
//
//	logger.Setup("console", os.Stderr)
//	logger.SetVerbosity(int(logger.Debug))
//	logger.Infof("starting server on %s", addr)
//	logger.Debugf("spot=%f iv=%f", spot, iv)
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Warn               // Warn logs recoverable problems.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

var base = zerolog.New(os.Stderr).With().Timestamp().Logger()

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	SetVerbosity(int(Info))
}

// Setup selects the output format ("json" or "console") and destination.
// Any other format falls back to console output.
func Setup(format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(format, "json") {
		base = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05", NoColor: true}).
		With().Timestamp().Logger()
}

// SetVerbosity sets the global logging verbosity.
// Out-of-range values are clamped.
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	zerolog.SetGlobalLevel(toZerolog(Level(v)))
}

// ParseLevel maps a config string (error, warn, info, debug, trace) to a Level.
// Unknown strings yield Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return Error
	case "warn", "warning":
		return Warn
	case "debug":
		return Debug
	case "trace":
		return Trace
	default:
		return Info
	}
}

// L returns the underlying structured logger for callers that need fields.
func L() *zerolog.Logger {
	return &base
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	case Debug:
		return zerolog.DebugLevel
	case Trace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	base.Error().Msgf(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	base.Warn().Msgf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	base.Info().Msgf(format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	base.Debug().Msgf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	base.Trace().Msgf(format, args...)
}
