package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	LookupFailure     ErrorKind = "lookup_failure"     // Search or browse request failed
	ValidationFailure ErrorKind = "validation_failure" // Rejected locally, no request issued
	CreationConflict  ErrorKind = "creation_conflict"  // Server rejected category creation
	AssignmentFailure ErrorKind = "assignment_failure" // Applying the category to the item failed
)

// Error is a user-visible workflow failure. Message is shown as is; for server
// rejections it is the server-provided text.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
