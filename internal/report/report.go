// Package report forwards the progress of a run to the log console and
// keeps it in the durable log list so that it can be replayed.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jakopako/mailwalk/internal/log"
	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/types"
)

// LogStore is the durable log list.
type LogStore interface {
	AppendLog(ctx context.Context, entry types.LogEntry) error
}

// Notifier delivers notifications to the console.
type Notifier interface {
	Notify(msg messaging.Message) error
}

// Reporter publishes log entries and the end of a run. Delivery failures
// are logged and never interrupt the run.
type Reporter struct {
	logs LogStore
	bus  Notifier
}

func New(logs LogStore, bus Notifier) *Reporter {
	return &Reporter{logs: logs, bus: bus}
}

func slogLevel(l types.LogLevel) slog.Level {
	switch l {
	case types.LogLevelWarn:
		return slog.LevelWarn
	case types.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Log records message at the given level.
func (r *Reporter) Log(ctx context.Context, level types.LogLevel, message string) {
	logger := log.LoggerFromContext(ctx)
	logger.Log(ctx, slogLevel(level), message, slog.String("type", string(level)))

	entry := types.LogEntry{Message: message, Type: level}
	if r.logs != nil {
		// the entry must be kept even if the run context is gone
		if err := r.logs.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
			logger.Warn(fmt.Sprintf("error storing log entry: %v", err))
		}
	}
	r.notify(ctx, messaging.Log, messaging.LogPayload{Data: entry})
}

// Finished announces a run that ended without failure.
func (r *Reporter) Finished(ctx context.Context, total int) {
	r.notify(ctx, messaging.AutomationFinished, messaging.FinishedPayload{Total: &total})
}

// Stopped announces a run that ended on a stop request.
func (r *Reporter) Stopped(ctx context.Context, total int) {
	r.notify(ctx, messaging.AutomationFinished, messaging.FinishedPayload{Total: &total, Stopped: true})
}

// Failed announces a run that ended with err.
func (r *Reporter) Failed(ctx context.Context, err error) {
	r.notify(ctx, messaging.AutomationFinished, messaging.FinishedPayload{Error: err.Error()})
}

func (r *Reporter) notify(ctx context.Context, action messaging.Action, payload any) {
	if r.bus == nil {
		return
	}
	msg, err := messaging.NewMessage(action, payload)
	if err == nil {
		err = r.bus.Notify(msg)
	}
	if err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("error sending %s notification: %v", action, err))
	}
}
