package tracecap

import (
	"github.com/tracecap/tracecap/stacktrace"
)

// Error wraps one captured fault: message, type classification, originating
// location, and the call frames at the capture point. It optionally holds a
// back-reference (relation only, no ownership) to the transaction it
// occurred within.
type Error struct {
	event
	message string
	kind    string
	code    string
	file    string
	line    int
	frames  []stacktrace.Frame
	tx      *Transaction
}

// Message returns the fault's message.
func (e *Error) Message() string { return e.message }

// Kind returns the fault's type classification (the wrapped error's dynamic
// Go type).
func (e *Error) Kind() string { return e.kind }

// Code returns the optional fault code, empty unless set.
func (e *Error) Code() string { return e.code }

// SetCode attaches an application-level fault code.
func (e *Error) SetCode(code string) { e.code = code }

// Culprit identifies the capture origin as "<file>:<line>".
func (e *Error) Culprit() string {
	return stacktrace.FormatLocation(e.file, e.line)
}

// Frames returns the call frames recorded at capture.
func (e *Error) Frames() []stacktrace.Frame { return e.frames }

// Transaction returns the linked transaction, or nil when the error was
// captured outside any.
func (e *Error) Transaction() *Transaction { return e.tx }

// SetTransaction links the error to the transaction it occurred within.
func (e *Error) SetTransaction(tx *Transaction) { e.tx = tx }
