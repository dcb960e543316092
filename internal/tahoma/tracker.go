package tahoma

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the fixed cadence between execution status probes.
const DefaultPollInterval = 2500 * time.Millisecond

// ExecutionStatus is whatever the gateway reports for an in-flight
// execution. Its contents are informational only; completion tracking cares
// solely about presence.
type ExecutionStatus struct {
	Owner       string `json:"owner,omitempty"`
	State       string `json:"state,omitempty"`
	FailureType string `json:"failureType,omitempty"`
}

// StatusProbe asks the gateway for the status of one execution. A nil status
// with a nil error means the gateway no longer has anything pending for the
// id.
type StatusProbe func(ctx context.Context, execID string) (*ExecutionStatus, error)

// Clock abstracts timer creation so the polling loop can be driven without
// real delays in tests.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Tracker polls the gateway until an execution is no longer pending.
//
// The loop is deliberately unbounded: no retry cap, no backoff, no timeout.
// An execution the gateway never settles keeps its chain polling until the
// context is cancelled, so a stuck execution on the gateway side is a
// resource leak this tracker will faithfully mirror.
type Tracker struct {
	Interval time.Duration
	Clock    Clock
}

// NewTracker returns a tracker polling on the given interval with the system
// clock. A non-positive interval falls back to DefaultPollInterval.
func NewTracker(interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{Interval: interval, Clock: systemClock{}}
}

// Track blocks until the gateway stops reporting a pending execution for
// execID, waiting one full interval before every probe. A probe error aborts
// the loop and propagates to the caller; there is no retry and no local
// recovery.
func (t *Tracker) Track(ctx context.Context, execID string, probe StatusProbe) error {
	clock := t.Clock
	if clock == nil {
		clock = systemClock{}
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}

		status, err := probe(ctx, execID)
		if err != nil {
			return errors.Wrapf(err, "%s: execution status probe failed", execID)
		}
		if status == nil {
			logrus.Debugf("%s: execution no longer pending", execID)
			return nil
		}

		logrus.Debugf("%s: execution still pending (%s)", execID, status.State)
	}
}
