// Package runstate guards the durable "automation running" flag. The flag
// is the only channel through which a stop request reaches a run, so it is
// read fresh on every check and never cached.
package runstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCancelled is returned once a stop request has been observed.
var ErrCancelled = errors.New("automation stopped by user")

// FlagStore is the durable storage of the run flag.
type FlagStore interface {
	// IsAutomationRunning returns the flag and whether it has been set at all.
	IsAutomationRunning(ctx context.Context) (running bool, set bool, err error)
	SetAutomationRunning(ctx context.Context, running bool) error
}

// Gate is the cancellation gate consulted before every step.
type Gate struct {
	Flags FlagStore
}

// Check fails with ErrCancelled if the run flag is explicitly false. An
// absent flag does not cancel.
func (g Gate) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	running, set, err := g.Flags.IsAutomationRunning(ctx)
	if err != nil {
		return fmt.Errorf("error reading run flag: %w", err)
	}
	if set && !running {
		return ErrCancelled
	}
	return nil
}

// releaseTimeout bounds the final write of the flag.
const releaseTimeout = 10 * time.Second

// Release clears the run flag. Calling it more than once only writes
// once.
type Release func() error

// Begin marks a run as active and returns the function that ends it. The
// release does not depend on the caller's context so that it still runs
// after the run context has been cancelled.
func Begin(ctx context.Context, flags FlagStore) (Release, error) {
	if err := flags.SetAutomationRunning(ctx, true); err != nil {
		return nil, fmt.Errorf("error setting run flag: %w", err)
	}
	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			releaseErr = flags.SetAutomationRunning(rctx, false)
		})
		return releaseErr
	}, nil
}

// Stop requests the running automation to stop. It is what the stop
// command does and is safe to call when nothing runs.
func Stop(ctx context.Context, flags FlagStore) error {
	return flags.SetAutomationRunning(ctx, false)
}
