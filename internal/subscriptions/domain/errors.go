package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition      = errors.New("invalid subscription transition")
	ErrNotFound               = errors.New("not found")
	ErrNoOp                   = errors.New("nothing changed")
	ErrConcurrencyConflict    = errors.New("subscription was modified concurrently")
	ErrNotDue                 = errors.New("subscription has not reached its end date")
	ErrNotActive              = errors.New("subscription is not active")
	ErrInvalidSort            = errors.New("unsupported sort field")
	ErrInvalidDuration        = errors.New("duration must be a positive number of hours")
	ErrInvalidPrice           = errors.New("price cannot be negative")
	ErrTrialAlreadyUsed       = errors.New("trial has already been used")
	ErrScopeAlreadySubscribed = errors.New("an open subscription already exists for this scope")
)

// TransitionError describes an operation rejected by the current status.
type TransitionError struct {
	Operation string
	From      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s subscription in status %q", e.Operation, e.From)
}

// Is reports ErrInvalidTransition so callers can match with errors.Is.
// Toggling a non-active subscription additionally matches ErrNotActive.
func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidTransition:
		return true
	case ErrNotActive:
		return e.Operation == opToggle
	default:
		return false
	}
}

const opToggle = "toggle"

func invalidTransition(op string, from Status) error {
	return &TransitionError{Operation: op, From: from}
}
