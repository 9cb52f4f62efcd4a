package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/types"
)

// LogStore receives the lines the console adds to the execution log.
type LogStore interface {
	AppendLog(ctx context.Context, entry types.LogEntry) error
}

// Console prints the log of a run while it is executing.
type Console struct {
	w      io.Writer
	logs   LogStore
	logger *slog.Logger
}

// NewConsole returns a console printing to w. logs may be nil.
func NewConsole(w io.Writer, logs LogStore) *Console {
	return &Console{
		w:      w,
		logs:   logs,
		logger: slog.With(slog.String("component", "console")),
	}
}

var levelTags = map[types.LogLevel]string{
	types.LogLevelInfo:    "INFO",
	types.LogLevelSuccess: "OK",
	types.LogLevelWarn:    "WARN",
	types.LogLevelError:   "ERROR",
}

// Print writes a single log entry.
func (c *Console) Print(entry types.LogEntry) {
	tag, ok := levelTags[entry.Type]
	if !ok {
		tag = strings.ToUpper(string(entry.Type))
	}
	fmt.Fprintf(c.w, "%-5s %s\n", tag, entry.Message)
}

// FinishedEntry is the log line that closes a run.
func FinishedEntry(p messaging.FinishedPayload) types.LogEntry {
	if p.Error != "" {
		return types.LogEntry{Message: p.Error, Type: types.LogLevelError}
	}
	total := 0
	if p.Total != nil {
		total = *p.Total
	}
	return types.LogEntry{Message: fmt.Sprintf("PROCESS FINISHED. Total processed: %d", total), Type: types.LogLevelSuccess}
}

// Follow prints the log notifications of a run until its automationFinished
// notification arrives, which is then printed and appended to the log.
func (c *Console) Follow(ctx context.Context, logs, finished <-chan messaging.Message) (messaging.FinishedPayload, error) {
	for {
		select {
		case <-ctx.Done():
			return messaging.FinishedPayload{}, ctx.Err()
		case msg, ok := <-logs:
			if !ok {
				return messaging.FinishedPayload{}, messaging.ErrClosed
			}
			c.printLog(msg)
		case msg, ok := <-finished:
			if !ok {
				return messaging.FinishedPayload{}, messaging.ErrClosed
			}
			var p messaging.FinishedPayload
			if err := msg.Decode(&p); err != nil {
				return p, err
			}
			// log lines are sent before the finished notification
			c.drain(logs)
			entry := FinishedEntry(p)
			if c.logs != nil {
				if err := c.logs.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
					c.logger.Error(fmt.Sprintf("error saving log entry: %v", err))
				}
			}
			c.Print(entry)
			return p, nil
		}
	}
}

func (c *Console) drain(logs <-chan messaging.Message) {
	for {
		select {
		case msg, ok := <-logs:
			if !ok {
				return
			}
			c.printLog(msg)
		default:
			return
		}
	}
}

func (c *Console) printLog(msg messaging.Message) {
	var p messaging.LogPayload
	if err := msg.Decode(&p); err != nil {
		c.logger.Warn(fmt.Sprintf("ignoring log notification: %v", err))
		return
	}
	c.Print(p.Data)
}
