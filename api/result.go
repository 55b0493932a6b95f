// Package api defines the envelope every remote collaborator answers with.
// Gateway implementations never let raw transport errors cross their
// boundary; every outcome is normalized into a Result.
package api

import "fmt"

// Ack is the empty success payload for operations that return no data.
type Ack struct{}

// Error describes a failed remote call: the upstream transport status, a
// human-readable message, and an optional wrapped cause.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Result is either a success payload of type T or an *Error. The zero value
// is a success with a zero payload; use the constructors.
type Result[T any] struct {
	Value T
	Err   *Error
}

// Success wraps a payload in a successful Result.
func Success[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Failure builds a failed Result carrying the upstream status and message.
func Failure[T any](statusCode int, message string, cause error) Result[T] {
	return Result[T]{Err: &Error{StatusCode: statusCode, Message: message, Cause: cause}}
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}
