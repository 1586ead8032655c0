package tracecap

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tracecap/tracecap/stacktrace"
)

// Transaction is a root timed unit of work (one handled request, one job).
// It owns its full subtree: every span and error captured while it is
// current, plus the stack of spans that are still open.
//
// A Transaction is not safe for concurrent use; see the package doc.
type Transaction struct {
	event
	name           string
	timer          *Timer
	meta           Meta
	backtraceLimit int
	duration       float64
	backtrace      []stacktrace.Frame
	headers        []string
	spans          []*Span
	errs           []*Error
	active         []*Span
	logger         *zap.Logger
}

// Name returns the transaction's current label.
func (t *Transaction) Name() string { return t.name }

// SetName relabels the transaction. Callable any number of times before Stop.
func (t *Transaction) SetName(name string) { t.name = name }

// Meta returns the outcome classification.
func (t *Transaction) Meta() Meta { return t.meta }

// SetMeta records the outcome classification.
func (t *Transaction) SetMeta(meta Meta) { t.meta = meta }

// BacktraceLimit returns the maximum stack depth recorded at stop.
func (t *Transaction) BacktraceLimit() int { return t.backtraceLimit }

// SetBacktraceLimit bounds the stack snapshot taken when the transaction and
// its spans stop. Zero means unbounded per the capture mechanism's convention.
func (t *Transaction) SetBacktraceLimit(limit int) { t.backtraceLimit = limit }

// Headers returns ambient debug headers recorded on the transaction.
func (t *Transaction) Headers() []string { return t.headers }

// SetHeaders records ambient debug headers (the Go runtime exposes none on
// its own; HTTP middleware typically supplies them).
func (t *Transaction) SetHeaders(headers []string) { t.headers = headers }

// Duration returns the computed duration in milliseconds. Meaningful only
// after Stop.
func (t *Transaction) Duration() float64 { return t.duration }

// Backtrace returns the stack snapshot captured at stop.
func (t *Transaction) Backtrace() []stacktrace.Frame { return t.backtrace }

// Spans returns the owned spans in creation order, in-flight ones included.
func (t *Transaction) Spans() []*Span { return t.spans }

// SetSpans bulk-replaces the span list. Used to hydrate from deserialized
// state or to let collaborators apply truncation before serialization.
func (t *Transaction) SetSpans(spans []*Span) { t.spans = spans }

// Errors returns the errors owned by this transaction in capture order.
func (t *Transaction) Errors() []*Error { return t.errs }

// SetErrors bulk-replaces the error list.
func (t *Transaction) SetErrors(errs []*Error) { t.errs = errs }

// AddSpan appends a span to the owned list. Spans self-register at
// construction; creation order is preserved regardless of completion order.
func (t *Transaction) AddSpan(s *Span) { t.spans = append(t.spans, s) }

// AddError appends an error to the owned list.
func (t *Transaction) AddError(e *Error) { t.errs = append(t.errs, e) }

// Start begins the transaction's timer.
func (t *Transaction) Start() error {
	if err := t.timer.Start(); err != nil {
		return fmt.Errorf("transaction %q: %w", t.name, err)
	}
	return nil
}

// Stop finalizes the transaction: any spans still open are force-stopped in
// LIFO order, the timer is stopped, the duration computed, and a backtrace
// snapshot taken. Stopping twice simply re-measures.
func (t *Transaction) Stop() error {
	return t.stop(nil)
}

// StopWithDuration is Stop with a caller-asserted duration in milliseconds
// that replaces the measured one.
func (t *Transaction) StopWithDuration(ms float64) error {
	return t.stop(&ms)
}

func (t *Transaction) stop(explicit *float64) error {
	// Leaked-span recovery: anything the caller forgot to stop drains here.
	for len(t.active) > 0 {
		leaked := t.active[len(t.active)-1]
		t.logger.Warn("force-stopping span left open at transaction stop",
			zap.String("transaction", t.name),
			zap.String("span", leaked.Name()))
		if err := leaked.Stop(); err != nil {
			t.logger.Warn("leaked span did not stop cleanly",
				zap.String("span", leaked.Name()),
				zap.Error(err))
		}
	}

	err := t.timer.Stop()
	if explicit != nil {
		t.duration = *explicit
	} else {
		if err != nil {
			return fmt.Errorf("transaction %q: %w", t.name, err)
		}
		ms, derr := t.timer.DurationMillis()
		if derr != nil {
			return fmt.Errorf("transaction %q: %w", t.name, derr)
		}
		t.duration = round3(ms)
	}

	t.backtrace = stacktrace.Capture(2, t.backtraceLimit)
	return nil
}

// PushActiveSpan pushes a span onto the active stack. A non-empty stack
// rewires the span's parent to the current top so nested spans always chain
// to their lexically enclosing span, never to the transaction root, even when
// construction supplied a different parent.
func (t *Transaction) PushActiveSpan(s *Span) {
	if n := len(t.active); n > 0 {
		s.parentID = t.active[n-1].ID()
	}
	t.active = append(t.active, s)
}

// PopActiveSpan pops LIFO until the popped element matches s by id, or the
// stack empties. This closes all spans opened after the matching one, keeping
// stop calls commutative when user code unwinds out of declared order (early
// returns, panics recovered upstream).
func (t *Transaction) PopActiveSpan(s *Span) {
	collapsed := 0
	for len(t.active) > 0 {
		n := len(t.active)
		top := t.active[n-1]
		t.active = t.active[:n-1]
		if top.ID() == s.ID() {
			break
		}
		collapsed++
	}
	if collapsed > 0 {
		t.logger.Warn("collapsed spans that were never stopped",
			zap.String("transaction", t.name),
			zap.String("stopped_span", s.Name()),
			zap.Int("collapsed", collapsed))
	}
}

// ActiveSpanCount reports how many spans are currently open.
func (t *Transaction) ActiveSpanCount() int { return len(t.active) }

// round3 rounds ms to 3 decimals, the wire format's duration precision.
func round3(ms float64) float64 {
	return math.Round(ms*1000) / 1000
}
