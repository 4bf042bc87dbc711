// Package logger provides the leveled logger used across gamelink.
//
// It wraps zerolog behind a small printf-style interface so clients can accept
// any implementation through their WithLogger options.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Interface is the logging surface consumed by gamelink components.
type Interface interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)

	// With returns a child logger that adds key=value to every entry.
	With(key string, value any) Interface
}

var _ Interface = (*Logger)(nil)

// Logger is a zerolog-backed Interface.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing to w at the given level ("debug", "info", "warn", "error", ...).
//
// Terminal writers get human readable console output, anything else receives JSON lines.
func New(level string, w io.Writer) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if w == nil {
		w = os.Stdout
	}

	if isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// With implements Interface.
func (l *Logger) With(key string, value any) Interface {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
