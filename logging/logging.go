// Package logging builds the structured loggers used across the runtime.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jina-lang/jinart/config"
)

// Logger is a slog.Logger whose level can be changed while it is in use.
type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	out   io.Closer
}

// New builds a logger from the log section of the configuration.
func New(cfg config.LogConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output: %w", err)
		}
		w, closer = f, f
	}

	return NewWithWriter(w, cfg.Format, level, cfg.Fields, closer)
}

// NewWithWriter builds a logger writing to w in the given format ("text" or
// "json"). closer, when set, is closed by Close.
func NewWithWriter(w io.Writer, format string, level slog.Level, fields map[string]string, closer io.Closer) (*Logger, error) {
	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	switch format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogFormat, format)
	}

	l := slog.New(h)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]any, 0, 2*len(keys))
		for _, k := range keys {
			args = append(args, k, fields[k])
		}
		l = l.With(args...)
	}

	return &Logger{Logger: l, level: lv, out: closer}, nil
}

// ParseLevel maps a configured level to a slog level.
func ParseLevel(level config.LogLevel) (slog.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug, nil
	case "", config.LogLevelInfo:
		return slog.LevelInfo, nil
	case config.LogLevelWarn:
		return slog.LevelWarn, nil
	case config.LogLevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, level)
	}
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(level config.LogLevel) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lv)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	return l.out.Close()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
