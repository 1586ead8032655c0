package tracecap

import (
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
)

// Timer measures one monotonic interval. Each instance is single-use: it is
// bound to exactly one measured interval and cannot be re-started. Stopping
// an already stopped timer re-measures the end instant; that is the caller's
// responsibility to avoid.
type Timer struct {
	clock   clockz.Clock
	begin   time.Time
	end     time.Time
	started bool
	stopped bool
}

// NewTimer creates an unstarted timer on the given clock. A nil clock means
// the real clock.
func NewTimer(clock clockz.Clock) *Timer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Timer{clock: clock}
}

// NewTimerAt creates a timer whose interval conceptually began at start.
// The timer counts as started; callers only Stop it. Used when the measured
// work began before the timer existed (e.g. replaying a transaction).
func NewTimerAt(clock clockz.Clock, start time.Time) *Timer {
	t := NewTimer(clock)
	t.begin = start
	t.started = true
	return t
}

// Start records the begin instant. Starting twice is a programmer error.
func (t *Timer) Start() error {
	if t.started {
		return fmt.Errorf("timer already started: %w", ErrInvalidTimerState)
	}
	t.begin = t.clock.Now()
	t.started = true
	return nil
}

// Stop records the end instant. Stopping before Start is a programmer error.
func (t *Timer) Stop() error {
	if !t.started {
		return fmt.Errorf("timer stopped before start: %w", ErrInvalidTimerState)
	}
	t.end = t.clock.Now()
	t.stopped = true
	return nil
}

// DurationMillis returns end minus begin in milliseconds. Valid only after
// Start and Stop have both happened.
func (t *Timer) DurationMillis() (float64, error) {
	if !t.stopped {
		return 0, fmt.Errorf("duration queried before stop: %w", ErrInvalidTimerState)
	}
	return float64(t.end.Sub(t.begin)) / float64(time.Millisecond), nil
}
