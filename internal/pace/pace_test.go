package pace

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGate struct {
	calls  atomic.Int32
	stopAt int32
}

var errStopped = errors.New("stopped")

func (g *countingGate) Check(ctx context.Context) error {
	if n := g.calls.Add(1); g.stopAt > 0 && n >= g.stopAt {
		return errStopped
	}
	return nil
}

func TestRangeValidate(t *testing.T) {
	tests := []struct {
		r       Range
		wantErr bool
	}{
		{Range{800 * time.Millisecond, 1500 * time.Millisecond}, false},
		{Range{time.Millisecond, 2 * time.Millisecond}, false},
		{Range{time.Second, time.Second}, true},
		{Range{2 * time.Second, time.Second}, true},
		{Range{0, time.Second}, true},
		{Range{-time.Second, time.Second}, true},
	}
	for _, tt := range tests {
		err := tt.r.Validate()
		if tt.wantErr {
			assert.Error(t, err, tt.r.String())
		} else {
			assert.NoError(t, err, tt.r.String())
		}
	}
}

func TestDurationWithinRange(t *testing.T) {
	p := &Pacer{Rand: rand.New(rand.NewPCG(1, 2))}
	r := Range{Min: 800 * time.Millisecond, Max: 1500 * time.Millisecond}
	seen := map[time.Duration]bool{}
	for range 1000 {
		d := p.Duration(r)
		require.GreaterOrEqual(t, d, r.Min)
		require.LessOrEqual(t, d, r.Max)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "durations must vary")
}

func TestWaitSleeps(t *testing.T) {
	g := &countingGate{}
	p := &Pacer{Gate: g, Slice: 5 * time.Millisecond}
	start := time.Now()
	err := p.Wait(context.Background(), Range{Min: 20 * time.Millisecond, Max: 25 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.GreaterOrEqual(t, g.calls.Load(), int32(4), "gate must be checked before the wait and between slices")
}

func TestWaitCheckedBeforeSleeping(t *testing.T) {
	g := &countingGate{stopAt: 1}
	p := &Pacer{Gate: g}
	start := time.Now()
	err := p.Wait(context.Background(), Range{Min: time.Minute, Max: 2 * time.Minute})
	assert.ErrorIs(t, err, errStopped)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitStopsBetweenSlices(t *testing.T) {
	g := &countingGate{stopAt: 3}
	p := &Pacer{Gate: g, Slice: time.Millisecond}
	start := time.Now()
	err := p.Wait(context.Background(), Range{Min: time.Minute, Max: 2 * time.Minute})
	assert.ErrorIs(t, err, errStopped)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(3), g.calls.Load())
}

func TestWaitContextCancelled(t *testing.T) {
	p := &Pacer{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx, Range{Min: time.Minute, Max: 2 * time.Minute})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitRejectsZeroWidth(t *testing.T) {
	p := &Pacer{}
	err := p.Wait(context.Background(), Range{Min: time.Second, Max: time.Second})
	assert.Error(t, err)
}
