// Package pace spreads automated actions over time so that they resemble
// a person operating the page.
package pace

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultSlice is the longest uninterrupted sleep of a Pacer.
const DefaultSlice = 500 * time.Millisecond

// Range is the interval a wait duration is drawn from.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Validate requires a positive range of non-zero width.
func (r Range) Validate() error {
	if r.Min <= 0 || r.Max <= r.Min {
		return fmt.Errorf("invalid pace range [%v, %v]: max must be greater than min and min must be positive", r.Min, r.Max)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("%v-%v", r.Min, r.Max)
}

// Checker is consulted before a wait and between its slices.
type Checker interface {
	Check(ctx context.Context) error
}

// Pacer performs randomized waits that observe stop requests.
type Pacer struct {
	Gate Checker
	// Rand is the source of wait durations. If nil the global source is
	// used.
	Rand *rand.Rand
	// Slice bounds each single sleep, the gate is checked in between.
	Slice time.Duration

	mu sync.Mutex
}

// Duration draws a uniformly distributed duration from r.
func (p *Pacer) Duration(r Range) time.Duration {
	span := int64(r.Max-r.Min) + 1
	if p.Rand == nil {
		return r.Min + time.Duration(rand.Int64N(span))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.Rand.Int64N(span))
}

func (p *Pacer) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Gate == nil {
		return nil
	}
	return p.Gate.Check(ctx)
}

// Wait checks the gate and then sleeps for a random duration from r.
func (p *Pacer) Wait(ctx context.Context, r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := p.check(ctx); err != nil {
		return err
	}
	slice := p.Slice
	if slice <= 0 {
		slice = DefaultSlice
	}
	remaining := p.Duration(r)
	for remaining > 0 {
		step := min(remaining, slice)
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		remaining -= step
		if remaining > 0 {
			if err := p.check(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
