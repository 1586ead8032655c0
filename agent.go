package tracecap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/tracecap/tracecap/config"
	"github.com/tracecap/tracecap/stacktrace"
)

// Dispatcher ships serialized events to a remote collector. Implementations
// own any retry, backoff, and timeout policy; the Agent only reports their
// outcome. See the transport package.
type Dispatcher interface {
	SendTransactions(ctx context.Context, store *TransactionStore) error
	SendErrors(ctx context.Context, store *ErrorStore) error
}

// Agent drives the trace lifecycle: it enforces the single-active-transaction
// rule, wires shared context into every event, and hands completed stores to
// the dispatcher. One Agent supports exactly one concurrently open
// transaction; give each concurrent logical request its own Agent.
type Agent struct {
	cfg          config.Config
	shared       Context
	factory      EventFactory
	transactions *TransactionStore
	errorStore   *ErrorStore
	dispatcher   Dispatcher
	logger       *zap.Logger
	clock        clockz.Clock
	current      *Transaction
}

// Option configures an Agent at creation time.
type Option func(*Agent)

// WithDispatcher sets the collaborator that ships completed stores.
func WithDispatcher(d Dispatcher) Option {
	return func(a *Agent) { a.dispatcher = d }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithClock injects the clock used for timestamps and timers. Defaults to
// the real clock.
func WithClock(clock clockz.Clock) Option {
	return func(a *Agent) { a.clock = clock }
}

// WithSharedContext sets agent-wide default metadata merged into every
// event. Call-specific context wins on leaf conflicts.
func WithSharedContext(ctx Context) Option {
	return func(a *Agent) { a.shared = ctx }
}

// WithFactory replaces the event factory.
func WithFactory(f EventFactory) Option {
	return func(a *Agent) { a.factory = f }
}

// New creates an Agent from the given configuration.
func New(cfg config.Config, opts ...Option) *Agent {
	a := &Agent{
		cfg:          cfg,
		shared:       Context{},
		transactions: NewTransactionStore(),
		errorStore:   NewErrorStore(),
		logger:       zap.NewNop(),
		clock:        clockz.RealClock,
	}
	for _, o := range opts {
		o(a)
	}
	if a.factory == nil {
		a.factory = NewStandardFactory(a.clock, a.logger)
	}
	return a
}

// CurrentTransaction returns the transaction in progress, or nil.
func (a *Agent) CurrentTransaction() *Transaction { return a.current }

// TransactionStore exposes the registry of transactions awaiting dispatch.
func (a *Agent) TransactionStore() *TransactionStore { return a.transactions }

// ErrorStore exposes the registry of unattached errors awaiting dispatch.
func (a *Agent) ErrorStore() *ErrorStore { return a.errorStore }

// StartTransaction begins a new unit of work and makes it current. Fails
// with ErrNestedTransaction while another transaction is in progress.
func (a *Agent) StartTransaction(name string, ctx Context) (*Transaction, error) {
	return a.startTransaction(name, ctx, time.Time{})
}

// StartTransactionAt is StartTransaction for work that conceptually began at
// start; the transaction's timer is anchored there and not re-started.
func (a *Agent) StartTransactionAt(name string, ctx Context, start time.Time) (*Transaction, error) {
	return a.startTransaction(name, ctx, start)
}

func (a *Agent) startTransaction(name string, ctx Context, start time.Time) (*Transaction, error) {
	if a.current != nil {
		return nil, fmt.Errorf("start transaction %q while %q is in progress: %w",
			name, a.current.Name(), ErrNestedTransaction)
	}

	tx := a.factory.NewTransaction(name, MergeContext(a.shared, ctx), start)
	a.transactions.Register(tx)
	if start.IsZero() {
		if err := tx.Start(); err != nil {
			return nil, err
		}
	}
	a.current = tx
	return tx, nil
}

// StopTransaction finalizes the named transaction: applies the configured
// backtrace limit, stops it (draining any leaked spans), and records meta.
// The current-transaction slot is cleared only when the stopped transaction
// is the tracked current one.
func (a *Agent) StopTransaction(name string, meta Meta) error {
	tx, ok := a.transactions.Fetch(name)
	if !ok {
		return fmt.Errorf("stop transaction %q: %w", name, ErrUnknownTransaction)
	}

	tx.SetBacktraceLimit(a.cfg.BacktraceLimit)
	if err := tx.Stop(); err != nil {
		return err
	}
	tx.SetMeta(meta)

	switch a.current {
	case tx:
		a.current = nil
	case nil:
	default:
		a.logger.Warn("stopped transaction is not the current one",
			zap.String("stopped", name),
			zap.String("current", a.current.Name()))
	}
	return nil
}

// StartSpan opens a span on the current transaction. Fails with
// ErrNoActiveTransaction when no transaction is in progress.
func (a *Agent) StartSpan(name string, ctx Context) (*Span, error) {
	if a.current == nil {
		return nil, fmt.Errorf("start span %q: %w", name, ErrNoActiveTransaction)
	}

	span := a.factory.NewSpan(name, MergeContext(a.shared, ctx), a.current, "")
	if err := span.Start(); err != nil {
		return nil, err
	}
	return span, nil
}

// CaptureError wraps err into an Error. An explicitly supplied transaction
// wins; otherwise the error attaches to the current transaction if one
// exists, else it registers into the error store.
func (a *Agent) CaptureError(err error, ctx Context, tx *Transaction) *Error {
	frames := stacktrace.Capture(1, a.cfg.BacktraceLimit)
	e := a.factory.NewError(err, MergeContext(a.shared, ctx), frames)

	if tx == nil {
		tx = a.current
	}
	if tx != nil {
		e.SetTransaction(tx)
		tx.AddError(e)
		return e
	}
	a.errorStore.Register(e)
	return e
}

// Send hands both stores to the dispatcher. An inactive agent silently
// drains them and reports success. Each store is reset only if its own
// dispatch succeeded; partial success is reported as overall failure while
// the store that succeeded stays cleared. No retry happens here — the
// unflushed store remains intact for the caller's next attempt.
func (a *Agent) Send(ctx context.Context) error {
	if !a.cfg.Active {
		a.transactions.Reset()
		a.errorStore.Reset()
		return nil
	}
	if a.dispatcher == nil {
		return ErrNoDispatcher
	}

	var failures []error
	if !a.errorStore.IsEmpty() {
		if err := a.dispatcher.SendErrors(ctx, a.errorStore); err != nil {
			failures = append(failures, fmt.Errorf("send errors: %w", err))
		} else {
			a.errorStore.Reset()
		}
	}
	if !a.transactions.IsEmpty() {
		if err := a.dispatcher.SendTransactions(ctx, a.transactions); err != nil {
			failures = append(failures, fmt.Errorf("send transactions: %w", err))
		} else {
			a.transactions.Reset()
		}
	}
	return errors.Join(failures...)
}
