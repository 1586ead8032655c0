package tracecap

import (
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/tracecap/tracecap/stacktrace"
)

// EventFactory builds the events an Agent records. Replace it to stamp
// custom fields onto every event or to substitute test doubles.
type EventFactory interface {
	// NewTransaction builds a transaction. A non-zero start means the unit
	// of work conceptually began earlier: the timestamp and timer both
	// anchor to it and the timer counts as already started.
	NewTransaction(name string, ctx Context, start time.Time) *Transaction

	// NewSpan builds a span owned by tx, optionally pre-parented to the
	// span with id parentID. The span registers itself into tx.
	NewSpan(name string, ctx Context, tx *Transaction, parentID string) *Span

	// NewError wraps a fault with the frames captured at the call site.
	NewError(err error, ctx Context, frames []stacktrace.Frame) *Error
}

// StandardFactory is the default EventFactory.
type StandardFactory struct {
	Clock  clockz.Clock
	Logger *zap.Logger
}

// NewStandardFactory returns a factory on the given clock and logger; nil
// arguments fall back to the real clock and a no-op logger.
func NewStandardFactory(clock clockz.Clock, logger *zap.Logger) *StandardFactory {
	if clock == nil {
		clock = clockz.RealClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandardFactory{Clock: clock, Logger: logger}
}

// NewTransaction implements EventFactory.
func (f *StandardFactory) NewTransaction(name string, ctx Context, start time.Time) *Transaction {
	t := &Transaction{
		name:   name,
		meta:   DefaultMeta(),
		logger: f.Logger,
	}
	if start.IsZero() {
		t.event = newEvent(f.Clock, ctx)
		t.timer = NewTimer(f.Clock)
	} else {
		t.event = newEventAt(start, ctx)
		t.timer = NewTimerAt(f.Clock, start)
	}
	return t
}

// NewSpan implements EventFactory.
func (f *StandardFactory) NewSpan(name string, ctx Context, tx *Transaction, parentID string) *Span {
	s := &Span{
		event:    newEvent(f.Clock, ctx),
		name:     name,
		typ:      DefaultMeta().Type,
		timer:    NewTimer(f.Clock),
		tx:       tx,
		parentID: parentID,
	}
	tx.AddSpan(s)
	return s
}

// NewError implements EventFactory.
func (f *StandardFactory) NewError(err error, ctx Context, frames []stacktrace.Frame) *Error {
	e := &Error{
		event:   newEvent(f.Clock, ctx),
		message: err.Error(),
		kind:    fmt.Sprintf("%T", err),
		frames:  frames,
	}
	if len(frames) > 0 {
		e.file = frames[0].AbsPath
		e.line = frames[0].Lineno
	}
	return e
}
