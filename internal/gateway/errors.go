package gateway

import "fmt"

// ValidationError reports a caller-caused failure: bad input, or an operation
// attempted against a session in the wrong state.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports an operation that clashes with existing state, such
// as requesting a pairing code for an already-authenticated session.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports an operation against a session that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// TransportError wraps a protocol-engine failure. The engine's own message is
// always preserved so callers can surface it as detail.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
