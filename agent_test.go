package tracecap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/tracecap/tracecap/config"
)

// stubDispatcher records calls and fails on demand.
type stubDispatcher struct {
	txErr    error
	errsErr  error
	txCalls  int
	errCalls int
}

func (d *stubDispatcher) SendTransactions(_ context.Context, _ *TransactionStore) error {
	d.txCalls++
	return d.txErr
}

func (d *stubDispatcher) SendErrors(_ context.Context, _ *ErrorStore) error {
	d.errCalls++
	return d.errsErr
}

func testAgent(opts ...Option) (*Agent, *clockz.FakeClock) {
	clock := clockz.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(config.Config{Active: true}, opts...), clock
}

func TestAgentStartTransactionBecomesCurrent(t *testing.T) {
	agent, _ := testAgent()

	tx, err := agent.StartTransaction("GET /a", nil)
	require.NoError(t, err)

	assert.Same(t, tx, agent.CurrentTransaction())
	registered, ok := agent.TransactionStore().Fetch("GET /a")
	require.True(t, ok)
	assert.Same(t, tx, registered)
}

func TestAgentRejectsNestedTransaction(t *testing.T) {
	agent, _ := testAgent()

	_, err := agent.StartTransaction("outer", nil)
	require.NoError(t, err)

	_, err = agent.StartTransaction("inner", nil)
	assert.ErrorIs(t, err, ErrNestedTransaction)
}

func TestAgentStartSpanWithoutTransaction(t *testing.T) {
	agent, _ := testAgent()

	_, err := agent.StartSpan("orphan", nil)
	assert.ErrorIs(t, err, ErrNoActiveTransaction)
}

func TestAgentStopUnknownTransaction(t *testing.T) {
	agent, _ := testAgent()

	err := agent.StopTransaction("never-started", Meta{})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestAgentStopTransactionSetsMetaAndClearsCurrent(t *testing.T) {
	agent, clock := testAgent()

	_, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)
	clock.Advance(10 * time.Millisecond)

	meta := Meta{Type: "request", Result: "HTTP 2xx"}
	require.NoError(t, agent.StopTransaction("job", meta))

	assert.Nil(t, agent.CurrentTransaction())
	tx, _ := agent.TransactionStore().Fetch("job")
	assert.Equal(t, meta, tx.Meta())
	assert.Equal(t, 10.0, tx.Duration())
}

func TestAgentStopLeavesCurrentWhenStoppingAnotherName(t *testing.T) {
	agent, _ := testAgent()

	_, err := agent.StartTransaction("first", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("first", Meta{}))

	current, err := agent.StartTransaction("second", nil)
	require.NoError(t, err)

	// Re-stopping a non-current registered name must not clear the slot.
	require.NoError(t, agent.StopTransaction("first", Meta{}))
	assert.Same(t, current, agent.CurrentTransaction())
}

func TestAgentStopDrainsLeakedSpans(t *testing.T) {
	agent, _ := testAgent()

	_, err := agent.StartTransaction("leaky", nil)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err := agent.StartSpan(name, nil)
		require.NoError(t, err)
	}

	require.NoError(t, agent.StopTransaction("leaky", Meta{}))

	tx, _ := agent.TransactionStore().Fetch("leaky")
	assert.Zero(t, tx.ActiveSpanCount())
}

func TestAgentSpanNesting(t *testing.T) {
	agent, _ := testAgent()

	tx, err := agent.StartTransaction("T", nil)
	require.NoError(t, err)

	a, err := agent.StartSpan("A", nil)
	require.NoError(t, err)
	b, err := agent.StartSpan("B", nil)
	require.NoError(t, err)

	require.NoError(t, b.Stop())
	require.NoError(t, a.Stop())
	require.NoError(t, agent.StopTransaction("T", Meta{}))

	assert.Equal(t, a.ID(), b.Payload().ParentID)
	assert.Equal(t, tx.ID(), a.Payload().ParentID)
}

func TestAgentSharedContextMergedIntoEvents(t *testing.T) {
	agent, _ := testAgent(WithSharedContext(Context{
		"tags": map[string]any{"service": "billing"},
	}))

	tx, err := agent.StartTransaction("job", Context{
		"tags": map[string]any{"request": "42"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"service": "billing", "request": "42"},
		tx.Context()["tags"])
}

func TestAgentCaptureErrorAttachesToCurrent(t *testing.T) {
	agent, _ := testAgent()

	tx, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)

	captured := agent.CaptureError(errors.New("boom"), nil, nil)

	assert.Same(t, tx, captured.Transaction())
	require.Len(t, tx.Errors(), 1)
	assert.True(t, agent.ErrorStore().IsEmpty())
}

func TestAgentCaptureErrorExplicitTransactionWins(t *testing.T) {
	agent, _ := testAgent()

	first, err := agent.StartTransaction("first", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("first", Meta{}))
	_, err = agent.StartTransaction("second", nil)
	require.NoError(t, err)

	captured := agent.CaptureError(errors.New("boom"), nil, first)

	assert.Same(t, first, captured.Transaction())
	assert.Len(t, first.Errors(), 1)
}

func TestAgentCaptureErrorWithoutTransactionGoesToStore(t *testing.T) {
	agent, _ := testAgent()

	agent.CaptureError(errors.New("boom"), nil, nil)

	assert.False(t, agent.ErrorStore().IsEmpty())
}

func TestAgentSendInactiveDrainsWithoutDispatch(t *testing.T) {
	clock := clockz.NewFakeClock()
	stub := &stubDispatcher{}
	agent := New(config.Config{Active: false}, WithClock(clock), WithDispatcher(stub))

	_, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("job", Meta{}))
	agent.CaptureError(errors.New("boom"), nil, nil)

	require.NoError(t, agent.Send(context.Background()))

	assert.True(t, agent.TransactionStore().IsEmpty())
	assert.True(t, agent.ErrorStore().IsEmpty())
	assert.Zero(t, stub.txCalls)
	assert.Zero(t, stub.errCalls)
}

func TestAgentSendWithoutDispatcher(t *testing.T) {
	agent, _ := testAgent()
	assert.ErrorIs(t, agent.Send(context.Background()), ErrNoDispatcher)
}

func TestAgentSendResetsStoresOnSuccess(t *testing.T) {
	stub := &stubDispatcher{}
	agent, _ := testAgent(WithDispatcher(stub))

	_, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("job", Meta{}))
	agent.CaptureError(errors.New("boom"), nil, nil)

	require.NoError(t, agent.Send(context.Background()))

	assert.True(t, agent.TransactionStore().IsEmpty())
	assert.True(t, agent.ErrorStore().IsEmpty())
	assert.Equal(t, 1, stub.txCalls)
	assert.Equal(t, 1, stub.errCalls)
}

func TestAgentSendPartialFailure(t *testing.T) {
	stub := &stubDispatcher{errsErr: errors.New("intake down")}
	agent, _ := testAgent(WithDispatcher(stub))

	_, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("job", Meta{}))
	agent.CaptureError(errors.New("boom"), nil, nil)

	err = agent.Send(context.Background())
	require.Error(t, err)

	// A failed error-dispatch does not prevent the transaction attempt, and
	// the store that succeeded stays cleared.
	assert.Equal(t, 1, stub.txCalls)
	assert.True(t, agent.TransactionStore().IsEmpty())
	assert.False(t, agent.ErrorStore().IsEmpty())
}

func TestAgentSendSkipsEmptyStores(t *testing.T) {
	stub := &stubDispatcher{}
	agent, _ := testAgent(WithDispatcher(stub))

	require.NoError(t, agent.Send(context.Background()))

	assert.Zero(t, stub.txCalls)
	assert.Zero(t, stub.errCalls)
}

func TestAgentStartTransactionAtDoesNotRestartTimer(t *testing.T) {
	began := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(began.Add(time.Second))
	agent := New(config.Config{Active: true}, WithClock(clock))

	tx, err := agent.StartTransactionAt("replayed", nil, began)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("replayed", Meta{}))

	assert.Equal(t, 1000.0, tx.Duration())
	assert.Equal(t, began, tx.Timestamp())
}

func TestAgentAppliesConfiguredBacktraceLimit(t *testing.T) {
	clock := clockz.NewFakeClock()
	agent := New(config.Config{Active: true, BacktraceLimit: 3}, WithClock(clock))

	tx, err := agent.StartTransaction("job", nil)
	require.NoError(t, err)
	require.NoError(t, agent.StopTransaction("job", Meta{}))

	assert.Equal(t, 3, tx.BacktraceLimit())
	assert.LessOrEqual(t, len(tx.Backtrace()), 3)
}

func TestAgentRoundTripExplicitDuration(t *testing.T) {
	agent, clock := testAgent()

	tx, err := agent.StartTransaction("T1", nil)
	require.NoError(t, err)
	clock.Advance(987 * time.Millisecond)
	require.NoError(t, tx.StopWithDuration(42))

	assert.Equal(t, 42.0, tx.Payload().Duration)
}
