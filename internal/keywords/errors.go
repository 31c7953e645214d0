// Package keywords implements the BASIC-dialect verb library: each verb
// is a (pattern, handler) pair registered into the expression engine
// adapter (internal/expr), grouped into files by category as spec.md
// §4.4 lists them.
package keywords

import "fmt"

// ErrorKind discriminates the runtime error taxonomy a verb handler can
// raise. Handlers never panic for expected failure modes; they return a
// *RuntimeError, which the expression engine surfaces to the script as
// a thrown value and to the host as a typed Go error.
type ErrorKind string

const (
	// KindAccessDenied is raised when the access-control gate (C9)
	// rejects a table operation for the caller's role set.
	KindAccessDenied ErrorKind = "access_denied"

	// KindNotFound is raised when a referenced row, file, or table does
	// not exist.
	KindNotFound ErrorKind = "not_found"

	// KindInvalidArgument is raised for malformed verb arguments: bad
	// filter grammar, unsafe paths, under/over-arity calls.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindAwaitingInput is the distinguished error HEAR raises to abort
	// the current AST; the host interprets it as "suspend this session
	// until the next inbound message" rather than as a failure.
	KindAwaitingInput ErrorKind = "awaiting_input"

	// KindUpstream is raised when an external dependency (HTTP, LLM
	// provider, object store) fails.
	KindUpstream ErrorKind = "upstream"

	// KindInteractionNotAvailable is raised when HEAR runs in a session
	// with no human on the other end (a scheduled automation run or a
	// webhook/table-trigger fire), per spec.md §4.7.
	KindInteractionNotAvailable ErrorKind = "interaction_not_available"

	// KindInternal is raised for anything else; its Message is never
	// shown to end users verbatim.
	KindInternal ErrorKind = "internal"
)

// RuntimeError is the single error type every verb handler raises.
// Message is safe to show to the end user (already redacted); Cause,
// when present, carries the underlying error for operator-visible logs
// only.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// NewError builds a RuntimeError with no underlying cause.
func NewError(kind ErrorKind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

// Wrap builds a RuntimeError that carries an underlying cause, whose
// message is never folded into Message.
func Wrap(kind ErrorKind, message string, cause error) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message, Cause: cause}
}
