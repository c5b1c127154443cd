// Package failure defines the error taxonomy shared by resolution, submission
// and drain.
//
// Callers decide presentation, but must tell ValidationRejected apart from
// TransientFailure: the first is final, the second is retried from the queue.
package failure

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	// CodeNotFound means resolution exhausted every source.
	CodeNotFound Code = "NOT_FOUND"

	// CodeValidationRejected means the remote service explicitly rejected a
	// request (client-error response). Never queued.
	CodeValidationRejected Code = "VALIDATION_REJECTED"

	// CodeTransient covers network errors, server errors and timeouts.
	CodeTransient Code = "TRANSIENT_FAILURE"

	// CodePersistence means the local store could not be read or written.
	CodePersistence Code = "PERSISTENCE_FAILURE"
)

// Error carries a failure code plus the operation that produced it.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Op names the failing operation, e.g. "queue.enqueue".
	Op string

	// Message is human-readable. For ValidationRejected it is the server's
	// message verbatim.
	Message string

	// StatusCode is the HTTP status when the failure came from the remote service.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a NOT_FOUND failure for an identifier.
func NotFound(op, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Op:      op,
		Message: fmt.Sprintf("no asset found for %q", identifier),
	}
}

// ValidationRejected builds a VALIDATION_REJECTED failure carrying the
// server's message.
func ValidationRejected(op string, status int, message string) *Error {
	return &Error{
		Code:       CodeValidationRejected,
		Op:         op,
		Message:    message,
		StatusCode: status,
	}
}

// Transient wraps err as a TRANSIENT_FAILURE.
func Transient(op string, status int, err error) *Error {
	msg := "remote service unavailable"
	if status > 0 {
		msg = fmt.Sprintf("remote service returned %d", status)
	}
	return &Error{
		Code:       CodeTransient,
		Op:         op,
		Message:    msg,
		StatusCode: status,
		Err:        err,
	}
}

// Persistence wraps err as a PERSISTENCE_FAILURE.
func Persistence(op string, err error) *Error {
	return &Error{
		Code:    CodePersistence,
		Op:      op,
		Message: "local store unavailable",
		Err:     err,
	}
}

// CodeOf returns the failure code of err, or "" if err carries none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND failure.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsValidationRejected reports whether err is a VALIDATION_REJECTED failure.
func IsValidationRejected(err error) bool { return CodeOf(err) == CodeValidationRejected }

// IsTransient reports whether err is a TRANSIENT_FAILURE.
func IsTransient(err error) bool { return CodeOf(err) == CodeTransient }

// IsPersistence reports whether err is a PERSISTENCE_FAILURE.
func IsPersistence(err error) bool { return CodeOf(err) == CodePersistence }

// Message returns the operator-facing message of err. For failures it is the
// Message field; otherwise err.Error().
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
