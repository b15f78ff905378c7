package web

import (
	"time"

	"github.com/custodia-hq/custodia/pkg/models"
)

// StartCycleRequest begins a new reporting cycle.
type StartCycleRequest struct {
	ReportID  string    `json:"report_id"  validate:"required"`
	PeriodEnd time.Time `json:"period_end" validate:"required"`
}

// TriggerAgentRequest runs one agent within a cycle. Artifacts are optional
// inputs forwarded to the agent.
type TriggerAgentRequest struct {
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// CreateTaskRequest opens a human checkpoint task.
type CreateTaskRequest struct {
	TaskType string     `json:"task_type" validate:"required"`
	Title    string     `json:"title"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// CompleteTaskRequest records the human decision that closes a task.
type CompleteTaskRequest struct {
	Outcome   models.DecisionOutcome `json:"outcome"    validate:"required,oneof=approve reject defer"`
	Rationale string                 `json:"rationale"  validate:"required"`
	DecidedBy string                 `json:"decided_by" validate:"required"`
}

// CreateIssueRequest raises an issue from a failed rule execution.
type CreateIssueRequest struct {
	RuleResult models.RuleExecutionResult `json:"rule_result" validate:"required"`
	Context    models.IssueContext        `json:"context"`
}

// AssignIssueRequest sets the issue assignee.
type AssignIssueRequest struct {
	Assignee string `json:"assignee" validate:"required"`
}

// ResolveIssueRequest records a resolution under the four-eyes gate.
type ResolveIssueRequest struct {
	ImplementedBy string `json:"implemented_by" validate:"required"`
	VerifiedBy    string `json:"verified_by,omitempty"`
	Description   string `json:"description"`
	ConfirmedBy   string `json:"confirmed_by,omitempty"`
}
