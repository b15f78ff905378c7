// Package persistence provides standardized error types for storage
// operations. All implementations return these sentinels so callers can
// branch with errors.Is regardless of backend.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleNotFound indicates a cycle was not found by the given identifier.
	ErrCycleNotFound = errors.New("cycle not found")

	// ErrStepNotFound indicates a workflow step was not found.
	ErrStepNotFound = errors.New("workflow step not found")

	// ErrTaskNotFound indicates a human task was not found.
	ErrTaskNotFound = errors.New("human task not found")

	// ErrIssueNotFound indicates an issue was not found.
	ErrIssueNotFound = errors.New("issue not found")
)

// EntityError wraps storage errors with operation and entity context.
type EntityError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save")
	EntityType string // Entity kind ("cycle", "step", "task", "issue", "audit")
	EntityID   string // Entity ID if applicable
	Err        error  // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.EntityType, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates an entity error with context.
func NewEntityError(op, entityType, entityID string, err error) *EntityError {
	return &EntityError{
		Op:         op,
		EntityType: entityType,
		EntityID:   entityID,
		Err:        err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrIssueNotFound)
}

// IsCycleNotFound checks if an error indicates a cycle was not found.
func IsCycleNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound)
}

// IsStepNotFound checks if an error indicates a workflow step was not found.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsTaskNotFound checks if an error indicates a human task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsIssueNotFound checks if an error indicates an issue was not found.
func IsIssueNotFound(err error) bool {
	return errors.Is(err, ErrIssueNotFound)
}
