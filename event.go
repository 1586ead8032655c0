package tracecap

import (
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

// event is the capability set shared by every captured kind: a globally
// unique id and a capture timestamp, both immutable after construction, plus
// the merged context the event was captured with.
type event struct {
	id        string
	timestamp time.Time
	context   Context
}

func newEvent(clock clockz.Clock, ctx Context) event {
	return newEventAt(clock.Now(), ctx)
}

func newEventAt(ts time.Time, ctx Context) event {
	if ctx == nil {
		ctx = Context{}
	}
	return event{
		id:        uuid.NewString(),
		timestamp: ts,
		context:   ctx,
	}
}

// ID returns the event's unique identifier.
func (e *event) ID() string { return e.id }

// Timestamp returns the capture time.
func (e *event) Timestamp() time.Time { return e.timestamp }

// Context returns the event's merged context. The map is live; callers that
// mutate it mutate the event.
func (e *event) Context() Context { return e.context }

// Meta classifies a transaction outcome. Spans carry only the Type part.
type Meta struct {
	Type   string
	Result string
}

// DefaultMeta is the classification applied when the caller supplies none.
func DefaultMeta() Meta {
	return Meta{Type: "generic"}
}
