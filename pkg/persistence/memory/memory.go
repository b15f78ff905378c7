// Package memory provides an in-memory persistence implementation for tests
// and local development. All data is lost on process exit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

// Persistence implements persistence.Persistence over plain maps guarded by a
// single RWMutex. Per-key atomicity follows from the lock.
type Persistence struct {
	mu sync.RWMutex

	cycles map[string]*models.CycleInstance
	steps  map[string]*models.WorkflowStep
	tasks  map[string]*models.HumanTask
	issues map[string]*models.Issue
	audit  []*models.AuditEntry
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		cycles: make(map[string]*models.CycleInstance),
		steps:  make(map[string]*models.WorkflowStep),
		tasks:  make(map[string]*models.HumanTask),
		issues: make(map[string]*models.Issue),
	}
}

func (p *Persistence) Cycles() persistence.CycleRepository { return &cycleRepository{p} }
func (p *Persistence) Steps() persistence.StepRepository   { return &stepRepository{p} }
func (p *Persistence) Tasks() persistence.TaskRepository   { return &taskRepository{p} }
func (p *Persistence) Issues() persistence.IssueRepository { return &issueRepository{p} }
func (p *Persistence) Audit() persistence.AuditRepository  { return &auditRepository{p} }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

var _ persistence.Persistence = (*Persistence)(nil)

type cycleRepository struct {
	p *Persistence
}

func (r *cycleRepository) Save(_ context.Context, cycle *models.CycleInstance) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *cycle
	r.p.cycles[cycle.ID] = &clone

	return nil
}

func (r *cycleRepository) GetByID(_ context.Context, id string) (*models.CycleInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cycle, ok := r.p.cycles[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "cycle", id, persistence.ErrCycleNotFound)
	}

	clone := *cycle

	return &clone, nil
}

func (r *cycleRepository) GetAll(_ context.Context) ([]*models.CycleInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cycles := make([]*models.CycleInstance, 0, len(r.p.cycles))
	for _, cycle := range r.p.cycles {
		clone := *cycle
		cycles = append(cycles, &clone)
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i].CreatedAt.Before(cycles[j].CreatedAt) })

	return cycles, nil
}

type stepRepository struct {
	p *Persistence
}

func (r *stepRepository) Save(_ context.Context, step *models.WorkflowStep) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := cloneStep(step)
	r.p.steps[step.ID] = clone

	return nil
}

func (r *stepRepository) GetByID(_ context.Context, id string) (*models.WorkflowStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	step, ok := r.p.steps[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "step", id, persistence.ErrStepNotFound)
	}

	return cloneStep(step), nil
}

func (r *stepRepository) GetByCycle(_ context.Context, cycleID string) ([]*models.WorkflowStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	steps := make([]*models.WorkflowStep, 0)

	for _, step := range r.p.steps {
		if step.CycleID == cycleID {
			steps = append(steps, cloneStep(step))
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].AgentType < steps[j].AgentType })

	return steps, nil
}

func (r *stepRepository) GetByCycleAndAgent(_ context.Context, cycleID string, agentType models.AgentType) (*models.WorkflowStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	for _, step := range r.p.steps {
		if step.CycleID == cycleID && step.AgentType == agentType {
			return cloneStep(step), nil
		}
	}

	return nil, persistence.NewEntityError("GetByCycleAndAgent", "step", cycleID+"/"+string(agentType), persistence.ErrStepNotFound)
}

func cloneStep(step *models.WorkflowStep) *models.WorkflowStep {
	clone := *step
	clone.Dependencies = append([]models.AgentType(nil), step.Dependencies...)

	return &clone
}

type taskRepository struct {
	p *Persistence
}

func (r *taskRepository) Save(_ context.Context, task *models.HumanTask) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.tasks[task.ID] = cloneTask(task)

	return nil
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.HumanTask, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	task, ok := r.p.tasks[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "task", id, persistence.ErrTaskNotFound)
	}

	return cloneTask(task), nil
}

func (r *taskRepository) GetByCycle(_ context.Context, cycleID string) ([]*models.HumanTask, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.HumanTask, 0)

	for _, task := range r.p.tasks {
		if task.CycleID == cycleID {
			tasks = append(tasks, cloneTask(task))
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	return tasks, nil
}

func cloneTask(task *models.HumanTask) *models.HumanTask {
	clone := *task

	if task.Decision != nil {
		decision := *task.Decision
		clone.Decision = &decision
	}

	return &clone
}

type issueRepository struct {
	p *Persistence
}

func (r *issueRepository) Save(_ context.Context, issue *models.Issue) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.issues[issue.ID] = cloneIssue(issue)

	return nil
}

func (r *issueRepository) GetByID(_ context.Context, id string) (*models.Issue, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	issue, ok := r.p.issues[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "issue", id, persistence.ErrIssueNotFound)
	}

	return cloneIssue(issue), nil
}

func (r *issueRepository) GetAll(_ context.Context) ([]*models.Issue, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(r.p.issues))
	for _, issue := range r.p.issues {
		issues = append(issues, cloneIssue(issue))
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })

	return issues, nil
}

func (r *issueRepository) GetByStatus(_ context.Context, statuses ...models.IssueStatus) ([]*models.Issue, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	wanted := make(map[models.IssueStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	issues := make([]*models.Issue, 0)

	for _, issue := range r.p.issues {
		if wanted[issue.Status] {
			issues = append(issues, cloneIssue(issue))
		}
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })

	return issues, nil
}

func cloneIssue(issue *models.Issue) *models.Issue {
	clone := *issue

	if issue.Resolution != nil {
		resolution := *issue.Resolution
		clone.Resolution = &resolution
	}

	return &clone
}

type auditRepository struct {
	p *Persistence
}

func (r *auditRepository) Append(_ context.Context, entry *models.AuditEntry) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *entry
	r.p.audit = append(r.p.audit, &clone)

	return nil
}

func (r *auditRepository) GetByEntity(_ context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	entries := make([]*models.AuditEntry, 0)

	for _, entry := range r.p.audit {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			clone := *entry
			entries = append(entries, &clone)
		}
	}

	return entries, nil
}
