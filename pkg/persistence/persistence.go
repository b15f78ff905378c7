// Package persistence provides the data storage abstraction for cycles,
// workflow steps, human tasks, issues and audit entries.
package persistence

import (
	"context"

	"github.com/custodia-hq/custodia/pkg/models"
)

// Persistence is the injected storage layer. Implementations must provide
// per-key atomicity; callers serialize per-entity mutation themselves.
type Persistence interface {
	Cycles() CycleRepository
	Steps() StepRepository
	Tasks() TaskRepository
	Issues() IssueRepository
	Audit() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CycleRepository stores cycle instances. Cycles are never deleted.
type CycleRepository interface {
	Save(ctx context.Context, cycle *models.CycleInstance) error
	GetByID(ctx context.Context, id string) (*models.CycleInstance, error)
	GetAll(ctx context.Context) ([]*models.CycleInstance, error)
}

// StepRepository stores workflow steps keyed by id, with lookups by cycle.
type StepRepository interface {
	Save(ctx context.Context, step *models.WorkflowStep) error
	GetByID(ctx context.Context, id string) (*models.WorkflowStep, error)
	GetByCycle(ctx context.Context, cycleID string) ([]*models.WorkflowStep, error)
	GetByCycleAndAgent(ctx context.Context, cycleID string, agentType models.AgentType) (*models.WorkflowStep, error)
}

// TaskRepository stores human tasks.
type TaskRepository interface {
	Save(ctx context.Context, task *models.HumanTask) error
	GetByID(ctx context.Context, id string) (*models.HumanTask, error)
	GetByCycle(ctx context.Context, cycleID string) ([]*models.HumanTask, error)
}

// IssueRepository stores issues. Issues are never hard-deleted.
type IssueRepository interface {
	Save(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	GetAll(ctx context.Context) ([]*models.Issue, error)
	GetByStatus(ctx context.Context, statuses ...models.IssueStatus) ([]*models.Issue, error)
}

// AuditRepository is the append-only audit trail. Entries are immutable.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	GetByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
}
