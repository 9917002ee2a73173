package core

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers classify failures with errors.Is against these.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	// ErrConflict is a validation failure caused by existing state.
	ErrConflict = fmt.Errorf("conflict: %w", ErrValidation)
)

// Error carries a user-facing message together with its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Invalid returns a validation error with the given message.
func Invalid(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NotFound returns a not-found error with the given message.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Unauthorized returns an authentication error with the given message.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// Conflict returns an error for a request that clashes with existing state.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Message returns the user-facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return fallback
}

var (
	ErrInvalidAmount      = Invalid("amount must be a positive number")
	ErrAmountTooLarge     = Invalid("amount must not exceed 1000000000")
	ErrInvalidLimit       = Invalid("limit must be a non-negative number")
	ErrInvalidDate        = Invalid("date must be an ISO-8601 date")
	ErrInvalidPaymentMode = Invalid("paymentMode must be one of cash, card, online, other")
	ErrEmptyCategory      = Invalid("category is required")
	ErrExpenseNotFound    = NotFound("Expense not found")
	ErrUserNotFound       = NotFound("User not found")
	ErrEmailTaken         = Conflict("Email already registered")
)
