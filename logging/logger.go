// Package logging wraps slog with compact formatting and domain attributes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Time layout: DD-MM-YY T HH:MM:SS
const timeLayout = "02-01-06T15:04:05"

type Logger struct {
	inner *slog.Logger
}

// Options select output, level and encoding
type Options struct {
	Output io.Writer // stdout if nil
	Level  slog.Level
	JSON   bool
}

// New returns text logger on stdout
func New(lvl slog.Level) *Logger {
	return NewWithOptions(Options{Level: lvl})
}

// Discard returns logger that drops every record
func Discard() *Logger {
	return NewWithOptions(Options{Output: io.Discard, Level: slog.LevelError + 1})
}

func NewWithOptions(o Options) *Logger {
	if o.Output == nil {
		o.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       o.Level,
		AddSource:   true,
		ReplaceAttr: compact,
	}

	var h slog.Handler
	if o.JSON {
		h = slog.NewJSONHandler(o.Output, opts)
	} else {
		h = slog.NewTextHandler(o.Output, opts)
	}
	return &Logger{inner: slog.New(h)}
}

// Shortens time and source: /build/history/saver.go -> saver.go
func compact(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.String(a.Key, a.Value.Time().Format(timeLayout))
	case slog.SourceKey:
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

// ParseLevel maps LOG_LEVEL values to slog levels, info by default
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With permanently adds any number of slog.Attr to logger.
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &Logger{
		inner: l.inner.With(args...),
	}
}

func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.log(context.Background(), slog.LevelDebug, msg, attrs...)
}

func (l *Logger) Info(msg string, attrs ...slog.Attr) {
	l.log(context.Background(), slog.LevelInfo, msg, attrs...)
}

func (l *Logger) Warn(msg string, attrs ...slog.Attr) {
	l.log(context.Background(), slog.LevelWarn, msg, attrs...)
}

func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.log(context.Background(), slog.LevelError, msg, attrs...)
}

// Logs at Error level and then panics
func (l *Logger) Panic(msg string, attrs ...slog.Attr) {
	l.log(context.Background(), slog.LevelError, msg, attrs...)
	panic(msg)
}

// Println and Printf log library output at Debug level.
// They let Logger stand in for the Telegram client logger.
func (l *Logger) Println(v ...any) {
	l.log(context.Background(), slog.LevelDebug, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *Logger) Printf(format string, v ...any) {
	l.log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, v...))
}

func (l *Logger) log(
	ctx context.Context,
	level slog.Level,
	msg string,
	attrs ...slog.Attr,
) {
	if !l.inner.Enabled(ctx, level) {
		return
	}

	// Skip runtime.Callers, log and the level method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.AddAttrs(attrs...)

	_ = l.inner.Handler().Handle(ctx, r)
}
