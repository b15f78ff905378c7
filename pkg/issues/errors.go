// Package issues implements the issue lifecycle and escalation engine:
// severity-driven SLA timers, four-eyes resolution confirmation and metrics
// aggregation.
package issues

import (
	"errors"
	"fmt"
)

var (
	// ErrFourEyesViolation indicates an actor attempted to verify their own
	// resolution. Policy violation, non-retryable; must surface to the human
	// actor with an explanation.
	ErrFourEyesViolation = errors.New("four-eyes violation")

	// ErrValidation indicates malformed or inadmissible input.
	ErrValidation = errors.New("validation failed")
)

// FourEyesViolationError rejects a self-verified resolution before any state
// is mutated.
type FourEyesViolationError struct {
	IssueID string
	Actor   string
}

func (e *FourEyesViolationError) Error() string {
	return fmt.Sprintf("cannot close issue %s: verifier must differ from implementer (%s attempted to verify their own resolution)", e.IssueID, e.Actor)
}

func (e *FourEyesViolationError) Unwrap() error {
	return ErrFourEyesViolation
}

// ValidationError describes a rejected input with a human-readable reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsFourEyesViolation checks for a four-eyes policy rejection.
func IsFourEyesViolation(err error) bool {
	return errors.Is(err, ErrFourEyesViolation)
}

// IsValidation checks for a malformed-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
