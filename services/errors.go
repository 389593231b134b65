package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrNotEligible       = errors.New("not eligible")
	ErrForbidden         = errors.New("forbidden")

	ErrInvalidSelection = fmt.Errorf("%w: invalid variation selection", ErrValidation)
	ErrQuantity         = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)

	// ErrAlreadyResolved is an InvalidTransition raised when answering a request twice.
	ErrAlreadyResolved = fmt.Errorf("%w: reopening request already resolved", ErrInvalidTransition)
)

// Eligibility reasons reported by CanRequestReopening.
const (
	IneligibleNotDeclined    = "order_not_declined"
	IneligibleWindowExpired  = "window_expired"
	IneligibleTooManyRequest = "too_many_requests"
	IneligiblePending        = "request_pending"
)

// NotEligibleError explains why a reopening request cannot be filed.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("not eligible for reopening: %s", e.Reason)
}

func (e *NotEligibleError) Unwrap() error {
	return ErrNotEligible
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func transitionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
