// Package ezerr defines the small, closed error taxonomy that crosses every
// boundary between the persistence façade and the HTTP surface: Unknown,
// NoSuchQuery, Interrupted and Busy. Nothing else is ever returned to a
// client as a structured error.
package ezerr

import "errors"

// Kind is one of the four wire-level error kinds.
type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindNoSuchQuery Kind = "not_found"
	KindInterrupted Kind = "interrupted"
	KindBusy        Kind = "busy"
)

// Error is the common shape every error surfaced to a client takes.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Unknown wraps an opaque engine or serialisation failure.
func Unknown(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

// NoSuchQuery reports that a named lookup missed the metadata table.
func NoSuchQuery(name string) *Error {
	return &Error{
		Kind:    KindNoSuchQuery,
		Message: "no such query",
		Details: map[string]string{"name": name},
	}
}

// Interrupted is returned for both pre-dequeue (generation-stale) and
// mid-execution (engine-level interrupt) cancellation; the two are
// observationally identical to a client.
var Interrupted = &Error{Kind: KindInterrupted, Message: "interrupted"}

// Busy is returned when a worker's mailbox was full at enqueue time.
var Busy = &Error{Kind: KindBusy, Message: "worker is busy"}

// As reports whether err is an *Error, unwrapping along the way.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
