// Package events defines the typed lifecycle notifications published on the
// event bus for cycle, step, task, issue and audit mutations.
package events

import (
	"time"

	"github.com/custodia-hq/custodia/pkg/models"
)

type EventType string

// Topic is the single bus topic all lifecycle events are published on.
const Topic = "custodia.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Cycle lifecycle events.
	CycleStartedEvent   EventType = "cycle.started"
	CyclePausedEvent    EventType = "cycle.paused"
	CycleResumedEvent   EventType = "cycle.resumed"
	CycleCompletedEvent EventType = "cycle.completed"

	// Agent step events.
	AgentTriggeredEvent EventType = "agent.triggered"
	AgentCompletedEvent EventType = "agent.completed"
	AgentFailedEvent    EventType = "agent.failed"

	// Human task events.
	TaskCreatedEvent   EventType = "task.created"
	TaskCompletedEvent EventType = "task.completed"
	TaskEscalatedEvent EventType = "task.escalated"

	// Issue lifecycle events.
	IssueCreatedEvent   EventType = "issue.created"
	IssueAssignedEvent  EventType = "issue.assigned"
	IssueEscalatedEvent EventType = "issue.escalated"
	IssueResolvedEvent  EventType = "issue.resolved"

	// Audit trail events.
	AuditRecordedEvent EventType = "audit.recorded"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CycleStarted struct {
	BaseEvent

	CycleID   string    `json:"cycle_id"`
	ReportID  string    `json:"report_id"`
	PeriodEnd time.Time `json:"period_end"`
}

func (e CycleStarted) GetType() EventType { return CycleStartedEvent }

type CyclePaused struct {
	BaseEvent

	CycleID string `json:"cycle_id"`
}

func (e CyclePaused) GetType() EventType { return CyclePausedEvent }

type CycleResumed struct {
	BaseEvent

	CycleID string `json:"cycle_id"`
}

func (e CycleResumed) GetType() EventType { return CycleResumedEvent }

type CycleCompleted struct {
	BaseEvent

	CycleID string `json:"cycle_id"`
}

func (e CycleCompleted) GetType() EventType { return CycleCompletedEvent }

type AgentTriggered struct {
	BaseEvent

	CycleID   string           `json:"cycle_id"`
	StepID    string           `json:"step_id"`
	AgentType models.AgentType `json:"agent_type"`
}

func (e AgentTriggered) GetType() EventType { return AgentTriggeredEvent }

type AgentCompleted struct {
	BaseEvent

	CycleID   string           `json:"cycle_id"`
	StepID    string           `json:"step_id"`
	AgentType models.AgentType `json:"agent_type"`
	Duration  time.Duration    `json:"duration"`
}

func (e AgentCompleted) GetType() EventType { return AgentCompletedEvent }

type AgentFailed struct {
	BaseEvent

	CycleID   string           `json:"cycle_id"`
	StepID    string           `json:"step_id"`
	AgentType models.AgentType `json:"agent_type"`
	Error     string           `json:"error"`
}

func (e AgentFailed) GetType() EventType { return AgentFailedEvent }

type TaskCreated struct {
	BaseEvent

	TaskID   string `json:"task_id"`
	CycleID  string `json:"cycle_id"`
	TaskType string `json:"task_type"`
}

func (e TaskCreated) GetType() EventType { return TaskCreatedEvent }

type TaskCompleted struct {
	BaseEvent

	TaskID  string                 `json:"task_id"`
	CycleID string                 `json:"cycle_id"`
	Outcome models.DecisionOutcome `json:"outcome"`
}

func (e TaskCompleted) GetType() EventType { return TaskCompletedEvent }

type TaskEscalated struct {
	BaseEvent

	TaskID          string `json:"task_id"`
	CycleID         string `json:"cycle_id"`
	EscalationLevel int    `json:"escalation_level"`
}

func (e TaskEscalated) GetType() EventType { return TaskEscalatedEvent }

type IssueCreated struct {
	BaseEvent

	IssueID  string          `json:"issue_id"`
	Severity models.Severity `json:"severity"`
	RuleID   string          `json:"rule_id,omitempty"`
	CDEID    string          `json:"cde_id,omitempty"`
}

func (e IssueCreated) GetType() EventType { return IssueCreatedEvent }

type IssueAssigned struct {
	BaseEvent

	IssueID  string `json:"issue_id"`
	Assignee string `json:"assignee"`
}

func (e IssueAssigned) GetType() EventType { return IssueAssignedEvent }

type IssueEscalated struct {
	BaseEvent

	IssueID         string          `json:"issue_id"`
	Severity        models.Severity `json:"severity"`
	EscalationLevel int             `json:"escalation_level"`
}

func (e IssueEscalated) GetType() EventType { return IssueEscalatedEvent }

type IssueResolved struct {
	BaseEvent

	IssueID    string             `json:"issue_id"`
	Status     models.IssueStatus `json:"status"`
	VerifiedBy string             `json:"verified_by,omitempty"`
}

func (e IssueResolved) GetType() EventType { return IssueResolvedEvent }

type AuditRecorded struct {
	BaseEvent

	EntryID    string `json:"entry_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
}

func (e AuditRecorded) GetType() EventType { return AuditRecordedEvent }
