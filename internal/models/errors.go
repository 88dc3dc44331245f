package models

import "errors"

// Error kinds. Workflow errors wrap one of these so callers can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("validation failed")
)

// Error is a workflow error with a user-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// NotFound returns an ErrNotFound error with msg.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Invalid returns an ErrInvalidOperation error with msg.
func Invalid(msg string) error { return &Error{Kind: ErrInvalidOperation, Message: msg} }

// Conflict returns an ErrConflict error with msg.
func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// Forbidden returns an ErrForbidden error with msg.
func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }

// Unauthorized returns an ErrUnauthorized error with msg.
func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Message: msg} }

// Validation returns an ErrValidation error with msg.
func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

// Specific errors that callers match by identity.
var (
	ErrEventFull         = &Error{Kind: ErrInvalidOperation, Message: "This event is full"}
	ErrAlreadyRegistered = &Error{Kind: ErrConflict, Message: "You have already joined this event"}
	// ErrTicketCollision means a generated ticket code hit the unique index; the join is retried.
	ErrTicketCollision = errors.New("ticket code collision")
)
