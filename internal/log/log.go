// Package log sets up the default slog logger and carries task scoped
// loggers through a context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jakopako/mailwalk/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

var loggerCtxKey = ctxKey{}

// Debug enables debug logging and additional debugging output such as
// screenshots of the host page.
var Debug bool

// Quiet limits the stdout logger to warnings and errors unless Debug is
// set. It is used while the log console prints the progress of a run.
var Quiet bool

// NoStdout drops the stdout logger, for commands that draw on the terminal.
// Records still reach the log file if one is configured.
var NoStdout bool

func level() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func stdoutLevel() slog.Level {
	if Quiet && !Debug {
		return slog.LevelWarn
	}
	return level()
}

// InitializeDefaultLogger installs a text handler on stdout and, if a log
// file is configured, a json handler writing to a rotating file.
func InitializeDefaultLogger(lc config.LogConfig) io.Closer {
	opts := &slog.HandlerOptions{Level: level()}
	var handlers fanout
	if !NoStdout {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: stdoutLevel()}))
	}
	var closer io.Closer = nopCloser{}
	if lc.File != "" {
		lj := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSize,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAge,
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, opts))
		closer = lj
	}
	var handler slog.Handler = handlers
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	}
	slog.SetDefault(slog.New(handler))
	return closer
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout passes every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
