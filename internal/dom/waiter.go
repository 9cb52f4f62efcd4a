package dom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults used when a Waiter leaves them unset.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 15 * time.Second
)

var (
	// ErrElementTimeout matches every *TimeoutError.
	ErrElementTimeout = errors.New("timed out waiting for element")
	// ErrConditionTimeout is returned by WaitUntil.
	ErrConditionTimeout = errors.New("timed out waiting for condition")
)

// TimeoutError is returned when no element matched before the deadline.
type TimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for element with selector: %s", e.Timeout, e.Selector)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrElementTimeout
}

// Checker is consulted on every poll tick. A non nil error ends the wait.
type Checker interface {
	Check(ctx context.Context) error
}

// Waiter polls a page at a fixed interval. The document is queried anew
// on every tick since the host page renders on its own schedule.
type Waiter struct {
	Page     Page
	Interval time.Duration
	Timeout  time.Duration
	Gate     Checker
}

func (w *Waiter) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return DefaultInterval
}

func (w *Waiter) timeout() time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return DefaultTimeout
}

var errDeadline = errors.New("deadline")

// snapshot reads the page with a deadline so that a stalled tab cannot
// keep the poll loop from checking the gate again.
func (w *Waiter) snapshot(ctx context.Context) (*Snapshot, error) {
	sctx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()
	snap, err := w.Page.Snapshot(sctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return snap, err
}

// poll evaluates cond on a fresh snapshot after every interval until it
// holds or timeout has elapsed.
func (w *Waiter) poll(ctx context.Context, timeout time.Duration, cond func(*Snapshot) bool) (*Snapshot, error) {
	start := time.Now()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if w.Gate != nil {
			if err := w.Gate.Check(ctx); err != nil {
				return nil, err
			}
		}
		snap, err := w.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if cond(snap) {
			return snap, nil
		}
		if time.Since(start) > timeout {
			return nil, errDeadline
		}
	}
}

// WaitFor waits for the first element matching selector.
func (w *Waiter) WaitFor(ctx context.Context, selector string) (Element, error) {
	if selector == "" {
		return Element{}, errors.New("WaitFor was called with an empty selector")
	}
	_, err := w.poll(ctx, w.timeout(), func(s *Snapshot) bool { return s.Count(selector) > 0 })
	if errors.Is(err, errDeadline) {
		return Element{}, &TimeoutError{Selector: selector, Timeout: w.timeout()}
	}
	if err != nil {
		return Element{}, err
	}
	return Element{Selector: selector}, nil
}

// WaitForAll waits until at least one element matches selector and
// returns all matches in document order.
func (w *Waiter) WaitForAll(ctx context.Context, selector string) ([]Element, error) {
	if selector == "" {
		return nil, errors.New("WaitForAll was called with an empty selector")
	}
	snap, err := w.poll(ctx, w.timeout(), func(s *Snapshot) bool { return s.Count(selector) > 0 })
	if errors.Is(err, errDeadline) {
		return nil, &TimeoutError{Selector: selector, Timeout: w.timeout()}
	}
	if err != nil {
		return nil, err
	}
	n := snap.Count(selector)
	elements := make([]Element, n)
	for i := 0; i < n; i++ {
		elements[i] = Element{Selector: selector, Index: i}
	}
	return elements, nil
}

// WaitUntil waits until cond holds on a snapshot, for at most timeout.
func (w *Waiter) WaitUntil(ctx context.Context, timeout time.Duration, cond func(*Snapshot) bool) (*Snapshot, error) {
	snap, err := w.poll(ctx, timeout, cond)
	if errors.Is(err, errDeadline) {
		return nil, ErrConditionTimeout
	}
	return snap, err
}
