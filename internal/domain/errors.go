package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure class. Match with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrPolicyRefusal = errors.New("refused by policy")
	ErrStorage       = errors.New("storage error")
	ErrEnforcement   = errors.New("enforcement error")
)

// Error carries the failure class plus a user-readable message.
type Error struct {
	Kind    error  // one of the sentinel errors above
	Op      string // operation that failed, e.g. "coordinator.start"
	Field   string // offending field for validation errors
	Message string // user-readable message
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error class.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// UserMessage is the text shown to the user, without the operation prefix.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Validation rejects input before any state change.
func Validation(op, field, msg string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Field: field, Message: msg}
}

// NotFound reports an absent profile or session.
func NotFound(op, what, id string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// Refused reports a policy decision, not a system fault.
func Refused(op, msg string) *Error {
	return &Error{Kind: ErrPolicyRefusal, Op: op, Message: msg}
}

// Storage wraps a persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: ErrStorage, Op: op, Message: "storage unavailable", Err: err}
}

// Enforcement wraps an enforcer or scheduler failure.
func Enforcement(op string, err error) *Error {
	return &Error{Kind: ErrEnforcement, Op: op, Message: "restriction could not be applied", Err: err}
}

// UserMessage extracts the user-readable message from any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return err.Error()
}
