package tracecap

import (
	"encoding/json"

	"github.com/tracecap/tracecap/stacktrace"
)

// Wire-ready intake records. Field order and shape are fixed by the intake
// schema; structs keep serialization deterministic.

// Processor tags a record with the intake pipeline that consumes it.
type Processor struct {
	Event string `json:"event"`
	Name  string `json:"name"`
}

// SpanCount summarizes span accounting for one transaction.
type SpanCount struct {
	Started int `json:"started"`
	Dropped int `json:"dropped"`
}

// TransactionPayload is the serialized form of one transaction tree.
type TransactionPayload struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	SpanCount SpanCount      `json:"span_count"`
	Timestamp int64          `json:"timestamp"`
	Name      string         `json:"name"`
	Duration  float64        `json:"duration"`
	Type      string         `json:"type"`
	Result    string         `json:"result"`
	Context   Context        `json:"context"`
	Spans     []SpanPayload  `json:"spans"`
	Errors    []ErrorPayload `json:"errors"`
	Processor Processor      `json:"processor"`
}

// SpanPayload is the serialized form of one span.
type SpanPayload struct {
	ID            string             `json:"id"`
	TransactionID string             `json:"transaction_id"`
	ParentID      string             `json:"parent_id"`
	TraceID       string             `json:"trace_id"`
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	Start         int64              `json:"start"`
	Duration      float64            `json:"duration"`
	Context       Context            `json:"context"`
	Stacktrace    []stacktrace.Frame `json:"stacktrace"`
}

// ExceptionPayload is the fault detail inside an error record.
type ExceptionPayload struct {
	Message    string             `json:"message"`
	Type       string             `json:"type"`
	Code       string             `json:"code"`
	Stacktrace []stacktrace.Frame `json:"stacktrace"`
}

// ErrorPayload is the serialized form of one captured error.
type ErrorPayload struct {
	ID            string           `json:"id"`
	Timestamp     int64            `json:"timestamp"`
	Context       Context          `json:"context"`
	Culprit       string           `json:"culprit"`
	Exception     ExceptionPayload `json:"exception"`
	TransactionID string           `json:"transaction_id,omitempty"`
	ParentID      string           `json:"parent_id,omitempty"`
	TraceID       string           `json:"trace_id,omitempty"`
	Processor     Processor        `json:"processor"`
}

// Payload serializes the transaction and its subtree. Span accounting is
// computed in one pass here, not maintained incrementally: started counts
// the spans actually emitted, dropped the flagged ones excluded.
func (t *Transaction) Payload() TransactionPayload {
	var started, dropped int
	spans := make([]SpanPayload, 0, len(t.spans))
	for _, s := range t.spans {
		if s.Dropped() {
			dropped++
			continue
		}
		started++
		spans = append(spans, s.Payload())
	}

	errs := make([]ErrorPayload, 0, len(t.errs))
	for _, e := range t.errs {
		errs = append(errs, e.Payload())
	}

	return TransactionPayload{
		ID:        t.ID(),
		TraceID:   t.ID(),
		SpanCount: SpanCount{Started: started, Dropped: dropped},
		Timestamp: t.Timestamp().UnixMicro(),
		Name:      t.name,
		Duration:  t.duration,
		Type:      t.meta.Type,
		Result:    t.meta.Result,
		Context:   t.Context(),
		Spans:     spans,
		Errors:    errs,
		Processor: Processor{Event: "transaction", Name: "transaction"},
	}
}

// MarshalJSON implements json.Marshaler.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Payload())
}

// Payload serializes the span. A span with no explicit parent emits the
// owning transaction's id as parent_id: it is a direct child of the
// transaction root, never parent-less.
func (s *Span) Payload() SpanPayload {
	parent := s.parentID
	if parent == "" {
		parent = s.tx.ID()
	}
	return SpanPayload{
		ID:            s.ID(),
		TransactionID: s.tx.ID(),
		ParentID:      parent,
		TraceID:       s.tx.ID(),
		Name:          s.name,
		Type:          s.typ,
		Start:         s.start,
		Duration:      s.duration,
		Context:       s.Context(),
		Stacktrace:    s.backtrace,
	}
}

// MarshalJSON implements json.Marshaler.
func (s *Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Payload())
}

// Payload serializes the error. A linked transaction sets transaction_id,
// parent_id, and trace_id, all to the transaction's id: errors link to the
// transaction, never to a specific span.
func (e *Error) Payload() ErrorPayload {
	p := ErrorPayload{
		ID:        e.ID(),
		Timestamp: e.Timestamp().UnixMicro(),
		Context:   e.Context(),
		Culprit:   e.Culprit(),
		Exception: ExceptionPayload{
			Message:    e.message,
			Type:       e.kind,
			Code:       e.code,
			Stacktrace: e.frames,
		},
		Processor: Processor{Event: "error", Name: "error"},
	}
	if e.tx != nil {
		p.TransactionID = e.tx.ID()
		p.ParentID = e.tx.ID()
		p.TraceID = e.tx.ID()
	}
	return p
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}
