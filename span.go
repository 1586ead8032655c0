package tracecap

import (
	"fmt"

	"github.com/tracecap/tracecap/stacktrace"
)

// Span is a timed sub-operation nested inside exactly one transaction. A
// span cannot exist without an owning transaction and self-registers into
// its span list at construction.
//
// The parent relation is held as a span id looked up within the same
// transaction, never a live reference; a span with no parent serializes as a
// direct child of the transaction root.
type Span struct {
	event
	name      string
	typ       string
	timer     *Timer
	tx        *Transaction
	parentID  string
	start     int64 // µs elapsed between Start and the transaction's capture timestamp
	duration  float64
	backtrace []stacktrace.Frame
	drop      bool
}

// Name returns the span's label.
func (s *Span) Name() string { return s.name }

// SetName relabels the span.
func (s *Span) SetName(name string) { s.name = name }

// Type returns the span's classification keyword.
func (s *Span) Type() string { return s.typ }

// SetType sets the span's classification keyword (e.g. "db.query").
func (s *Span) SetType(typ string) { s.typ = typ }

// Transaction returns the owning transaction.
func (s *Span) Transaction() *Transaction { return s.tx }

// ParentID returns the parent span's id, or "" when the span is a direct
// child of the transaction root.
func (s *Span) ParentID() string { return s.parentID }

// Start records the µs offset from the transaction's capture timestamp,
// pushes the span onto the transaction's active stack (which may rewire the
// parent to the stack top), and starts the span's timer.
func (s *Span) Start() error {
	s.start = s.timer.clock.Now().Sub(s.tx.Timestamp()).Microseconds()
	s.tx.PushActiveSpan(s)
	if err := s.timer.Start(); err != nil {
		return fmt.Errorf("span %q: %w", s.name, err)
	}
	return nil
}

// Stop stops the span's timer, pops it off the transaction's active stack,
// and computes its duration. The backtrace snapshot is bounded by the owning
// transaction's limit; spans have no limit of their own.
func (s *Span) Stop() error {
	return s.stop(nil)
}

// StopWithDuration is Stop with a caller-asserted duration in milliseconds.
func (s *Span) StopWithDuration(ms float64) error {
	return s.stop(&ms)
}

func (s *Span) stop(explicit *float64) error {
	err := s.timer.Stop()
	s.tx.PopActiveSpan(s)
	if explicit != nil {
		s.duration = *explicit
	} else {
		if err != nil {
			return fmt.Errorf("span %q: %w", s.name, err)
		}
		ms, derr := s.timer.DurationMillis()
		if derr != nil {
			return fmt.Errorf("span %q: %w", s.name, derr)
		}
		s.duration = round3(ms)
	}

	s.backtrace = stacktrace.Capture(2, s.tx.BacktraceLimit())
	return nil
}

// StartOffset returns the µs offset from the transaction's capture timestamp.
func (s *Span) StartOffset() int64 { return s.start }

// Duration returns the computed duration in milliseconds. Meaningful only
// after Stop.
func (s *Span) Duration() float64 { return s.duration }

// SetDropped flags the span for exclusion from serialization. Dropped spans
// stay in memory and are counted separately on the wire.
func (s *Span) SetDropped(drop bool) { s.drop = drop }

// Dropped reports whether the span is excluded from serialization.
func (s *Span) Dropped() bool { return s.drop }
