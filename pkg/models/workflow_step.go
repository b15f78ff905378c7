package models

import "time"

// StepStatus represents the state of one agent's workflow step within a cycle.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// WorkflowStep tracks the execution of one agent type within one cycle. There
// is exactly one step per (cycle, agent type) pair, created together with the
// cycle with its dependency set pre-populated from the static graph.
//
// Valid transitions: pending -> in_progress -> completed, and
// in_progress -> failed -> in_progress on re-trigger. A step never returns to
// pending.
type WorkflowStep struct {
	ID           string      `json:"id"`
	CycleID      string      `json:"cycle_id"   validate:"required"`
	AgentType    AgentType   `json:"agent_type" validate:"required"`
	Dependencies []AgentType `json:"dependencies"`
	Status       StepStatus  `json:"status"     validate:"required"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CanTransitionTo reports whether the step status machine permits moving from
// the current status to next.
func (s *WorkflowStep) CanTransitionTo(next StepStatus) bool {
	switch s.Status {
	case StepStatusPending:
		return next == StepStatusInProgress
	case StepStatusInProgress:
		return next == StepStatusCompleted || next == StepStatusFailed
	case StepStatusFailed:
		return next == StepStatusInProgress
	case StepStatusCompleted:
		return false
	default:
		return false
	}
}
