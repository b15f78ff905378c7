package models

import "time"

// TaskStatus represents the state of a human-in-the-loop task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusEscalated  TaskStatus = "escalated"
)

// DecisionOutcome is the human verdict recorded against a task.
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "approve"
	DecisionReject  DecisionOutcome = "reject"
	DecisionDefer   DecisionOutcome = "defer"
)

// Decision is the immutable record of a human choice. A non-empty rationale
// is mandatory; the decision is appended to the audit trail when recorded.
type Decision struct {
	Outcome   DecisionOutcome `json:"outcome"   validate:"required,oneof=approve reject defer"`
	Rationale string          `json:"rationale" validate:"required"`
	DecidedBy string          `json:"decided_by" validate:"required"`
	DecidedAt time.Time       `json:"decided_at"`
}

// HumanTask is a workflow checkpoint requiring an explicit human decision.
// Tasks are independent of the agent dependency graph but may be consulted by
// agent logic before an agent reports success.
type HumanTask struct {
	ID              string     `json:"id"`
	CycleID         string     `json:"cycle_id"  validate:"required"`
	TaskType        string     `json:"task_type" validate:"required"`
	Title           string     `json:"title"`
	Status          TaskStatus `json:"status"`
	EscalationLevel int        `json:"escalation_level"`
	Assignee        string     `json:"assignee,omitempty"`
	Decision        *Decision  `json:"decision,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DueDate         *time.Time `json:"due_date,omitempty"`
}

// Open reports whether the task still awaits a decision.
func (t *HumanTask) Open() bool {
	return t.Status != TaskStatusCompleted
}
