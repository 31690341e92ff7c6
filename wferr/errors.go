package wferr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error tag. Kinds are never
// renumbered or renamed; new kinds may be added.
type Kind string

const (
	// KindGraphInvalid marks a validation failure. Surfaced at graph
	// submission, never from inside Execute.
	KindGraphInvalid Kind = "GraphInvalid"
	// KindNodeTimeout marks a node's per-invocation deadline reached.
	KindNodeTimeout Kind = "NodeTimeout"
	// KindNodeContractViolation marks a node that produced malformed outputs.
	KindNodeContractViolation Kind = "NodeContractViolation"
	// KindCircuitOpen marks a call short-circuited by an open breaker.
	KindCircuitOpen Kind = "CircuitOpen"
	// KindRetryExhausted marks a transient error that survived all retry attempts.
	KindRetryExhausted Kind = "RetryExhausted"
	// KindUpstreamFailed marks an input unavailable because a producer node failed.
	KindUpstreamFailed Kind = "UpstreamFailed"
	// KindEmergencyHalted marks an operation refused by the emergency gate.
	KindEmergencyHalted Kind = "EmergencyHalted"
	// KindCancelled marks a caller-requested stop.
	KindCancelled Kind = "Cancelled"
	// KindStateBackendError marks a state store infrastructure failure.
	KindStateBackendError Kind = "StateBackendError"
	// KindEventBackendError marks an event bus infrastructure failure.
	KindEventBackendError Kind = "EventBackendError"
)

// Error is the concrete error type produced by workflow components. It
// always carries a Kind and optionally wraps an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error that wraps cause, keeping it reachable via errors.Is/As.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorKind returns the machine-readable kind tag.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// kinder is implemented by any error exposing its Kind; wferr.Error and
// graph.InvalidError both satisfy it.
type kinder interface {
	ErrorKind() string
}

// KindOf recovers the machine-readable kind from err, walking the
// Unwrap chain. Returns "" if no component of err carries a kind.
func KindOf(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == string(kind)
}
