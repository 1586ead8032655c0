// Package transport ships serialized trace events to a collector. It owns
// the retry, backoff, and timeout policy the capture core deliberately
// leaves to its dispatcher.
package transport

import (
	"context"

	"github.com/tracecap/tracecap"
)

// Discard is a Dispatcher that accepts and drops every batch. Useful in
// tests and as a stand-in while no collector is configured.
type Discard struct{}

// SendTransactions implements tracecap.Dispatcher.
func (Discard) SendTransactions(context.Context, *tracecap.TransactionStore) error { return nil }

// SendErrors implements tracecap.Dispatcher.
func (Discard) SendErrors(context.Context, *tracecap.ErrorStore) error { return nil }
