package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jakopako/mailwalk/internal/messaging"
)

// Listener starts a run for every startAutomation notification. Runs are
// executed one after the other.
type Listener struct {
	runner *Runner
	starts <-chan messaging.Message
	logger *slog.Logger
}

// NewListener subscribes to startAutomation on bus. Notifications sent
// after NewListener returns are not missed.
func NewListener(bus *messaging.Bus, runner *Runner) *Listener {
	return &Listener{
		runner: runner,
		starts: bus.Subscribe(messaging.StartAutomation),
		logger: slog.With(slog.String("component", "automation")),
	}
}

// Listen handles notifications until ctx ends or the bus is closed.
// onResult is called after every run.
func (l *Listener) Listen(ctx context.Context, onResult func(*Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-l.starts:
			if !ok {
				return nil
			}
			var p messaging.StartPayload
			if err := msg.Decode(&p); err != nil {
				l.logger.Error(fmt.Sprintf("ignoring start request: %v", err))
				continue
			}
			if len(p.Senders) == 0 || p.Days < 1 {
				l.logger.Error(fmt.Sprintf("ignoring start request %s without senders or days", msg.ID))
				continue
			}
			res := l.runner.Run(ctx, p.Senders, p.Days)
			if onResult != nil {
				onResult(res)
			}
		}
	}
}
