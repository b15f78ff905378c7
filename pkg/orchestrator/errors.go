// Package orchestrator implements the cycle orchestrator: cycle lifecycle,
// agent dependency enforcement and human-task gating.
package orchestrator

import (
	"errors"
	"fmt"

	"github.com/custodia-hq/custodia/pkg/models"
)

// Standard orchestrator error types. Rejected mutations always leave prior
// state untouched.
var (
	// ErrDependencyNotSatisfied indicates an agent was triggered before all of
	// its dependency steps completed. Recoverable: retry once they have.
	ErrDependencyNotSatisfied = errors.New("dependencies not satisfied")

	// ErrCyclePaused indicates the cycle is held at a human checkpoint.
	// Recoverable: resume the cycle first.
	ErrCyclePaused = errors.New("cycle is paused")

	// ErrValidation indicates malformed or inadmissible input.
	ErrValidation = errors.New("validation failed")

	// ErrAgentExecution indicates the invoked agent unit reported failure.
	// Not retried automatically; the step stays failed until re-triggered.
	ErrAgentExecution = errors.New("agent execution failed")
)

// DependencyNotSatisfiedError carries the set of dependencies still missing
// for the triggered agent.
type DependencyNotSatisfiedError struct {
	CycleID   string
	AgentType models.AgentType
	Missing   []models.AgentType
}

func (e *DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("agent %s in cycle %s cannot start: dependencies %v are not completed", e.AgentType, e.CycleID, e.Missing)
}

func (e *DependencyNotSatisfiedError) Unwrap() error {
	return ErrDependencyNotSatisfied
}

// CyclePausedError rejects agent triggers while the cycle is paused.
type CyclePausedError struct {
	CycleID string
}

func (e *CyclePausedError) Error() string {
	return fmt.Sprintf("cycle %s is paused: resume it before triggering agents", e.CycleID)
}

func (e *CyclePausedError) Unwrap() error {
	return ErrCyclePaused
}

// ValidationError describes a rejected input with a human-readable reason
// referencing the violated invariant.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AgentExecutionError wraps the failure signal of an external agent unit.
type AgentExecutionError struct {
	CycleID   string
	AgentType models.AgentType
	Err       error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s failed in cycle %s: %v", e.AgentType, e.CycleID, e.Err)
}

func (e *AgentExecutionError) Unwrap() error {
	return ErrAgentExecution
}

// IsDependencyNotSatisfied checks for a dependency gate rejection.
func IsDependencyNotSatisfied(err error) bool {
	return errors.Is(err, ErrDependencyNotSatisfied)
}

// IsCyclePaused checks for a paused-cycle rejection.
func IsCyclePaused(err error) bool {
	return errors.Is(err, ErrCyclePaused)
}

// IsValidation checks for a malformed-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAgentExecution checks for an agent failure.
func IsAgentExecution(err error) bool {
	return errors.Is(err, ErrAgentExecution)
}
