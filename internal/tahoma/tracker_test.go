package tahoma

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediateClock fires every timer right away and counts how many waits the
// polling loop went through.
type immediateClock struct {
	waits int
}

func (c *immediateClock) After(time.Duration) <-chan time.Time {
	c.waits++
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// blockedClock never fires.
type blockedClock struct{}

func (blockedClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func pendingTimesProbe(pending int, calls *int) StatusProbe {
	return func(context.Context, string) (*ExecutionStatus, error) {
		*calls++
		if *calls <= pending {
			return &ExecutionStatus{State: "IN_PROGRESS"}, nil
		}
		return nil, nil
	}
}

func TestTrackResolvesOnAbsence(t *testing.T) {
	clock := &immediateClock{}
	tracker := &Tracker{Interval: time.Millisecond, Clock: clock}

	calls := 0
	err := tracker.Track(context.Background(), "exec-1", pendingTimesProbe(2, &calls))
	require.NoError(t, err)

	assert.Equal(t, 3, calls, "tracker resolves only once a probe reports absence")
	assert.Equal(t, 3, clock.waits, "every probe waits a full interval first")
}

func TestTrackWaitsFullIntervalsOnRealClock(t *testing.T) {
	tracker := NewTracker(5 * time.Millisecond)

	calls := 0
	start := time.Now()
	err := tracker.Track(context.Background(), "exec-1", pendingTimesProbe(2, &calls))
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestTrackProbeErrorAborts(t *testing.T) {
	clock := &immediateClock{}
	tracker := &Tracker{Interval: time.Millisecond, Clock: clock}

	calls := 0
	probe := func(context.Context, string) (*ExecutionStatus, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("gateway unreachable")
		}
		return &ExecutionStatus{State: "IN_PROGRESS"}, nil
	}

	err := tracker.Track(context.Background(), "exec-1", probe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway unreachable")
	assert.Equal(t, 2, calls, "no retry after a probe failure")
}

func TestTrackStopsOnContextCancel(t *testing.T) {
	tracker := &Tracker{Interval: time.Millisecond, Clock: blockedClock{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tracker.Track(ctx, "exec-1", func(context.Context, string) (*ExecutionStatus, error) {
		t.Fatal("probe must not run after cancellation")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
