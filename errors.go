package tracecap

import "errors"

// Usage-contract violations. All three fail fast and are never auto-recovered;
// check with errors.Is.
var (
	// ErrNestedTransaction is returned when a transaction is started while
	// another one is still current. Concurrent units of work are modeled as
	// spans, never as nested transactions.
	ErrNestedTransaction = errors.New("transaction already in progress")

	// ErrUnknownTransaction is returned when stopping or fetching a
	// transaction name that was never registered.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrNoActiveTransaction is returned when a span is started with no
	// current transaction to attach it to.
	ErrNoActiveTransaction = errors.New("no active transaction")

	// ErrInvalidTimerState is returned on timer misuse: stopping before
	// start, querying duration before stop, or re-starting.
	ErrInvalidTimerState = errors.New("invalid timer state")

	// ErrNoDispatcher is returned by Send when the agent is active but no
	// dispatcher was configured.
	ErrNoDispatcher = errors.New("no dispatcher configured")
)
