// Package file provides file-based persistence. Each entity is one JSON file
// under a per-type subdirectory of the configured root.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

const dirPerm = 0o755

// Persistence implements the persistence.Persistence interface using the file
// system. Writes within one store are serialized by a mutex; per-key atomicity
// comes from writing whole files.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (p *Persistence) Cycles() persistence.CycleRepository { return &cycleRepository{p} }
func (p *Persistence) Steps() persistence.StepRepository   { return &stepRepository{p} }
func (p *Persistence) Tasks() persistence.TaskRepository   { return &taskRepository{p} }
func (p *Persistence) Issues() persistence.IssueRepository { return &issueRepository{p} }
func (p *Persistence) Audit() persistence.AuditRepository  { return &auditRepository{p} }

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is none.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) write(kind, id string, entity any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, kind)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	raw, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	path := filepath.Join(dir, id+".json")
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return os.Rename(tmp, path)
}

func (p *Persistence) read(kind, id string, entity any, notFound error) error {
	raw, err := os.ReadFile(filepath.Join(p.root, kind, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewEntityError("GetByID", kind, id, notFound)
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	return json.Unmarshal(raw, entity)
}

func (p *Persistence) ids(kind string) ([]string, error) {
	root := os.DirFS(filepath.Join(p.root, kind))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	sort.Strings(ids)

	return ids, nil
}

type cycleRepository struct {
	p *Persistence
}

func (r *cycleRepository) Save(_ context.Context, cycle *models.CycleInstance) error {
	return r.p.write("cycles", cycle.ID, cycle)
}

func (r *cycleRepository) GetByID(_ context.Context, id string) (*models.CycleInstance, error) {
	var cycle models.CycleInstance
	if err := r.p.read("cycles", id, &cycle, persistence.ErrCycleNotFound); err != nil {
		return nil, err
	}

	return &cycle, nil
}

func (r *cycleRepository) GetAll(ctx context.Context) ([]*models.CycleInstance, error) {
	ids, err := r.p.ids("cycles")
	if err != nil {
		return nil, err
	}

	cycles := make([]*models.CycleInstance, 0, len(ids))

	for _, id := range ids {
		cycle, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		cycles = append(cycles, cycle)
	}

	return cycles, nil
}

type stepRepository struct {
	p *Persistence
}

func (r *stepRepository) Save(_ context.Context, step *models.WorkflowStep) error {
	return r.p.write("steps", step.ID, step)
}

func (r *stepRepository) GetByID(_ context.Context, id string) (*models.WorkflowStep, error) {
	var step models.WorkflowStep
	if err := r.p.read("steps", id, &step, persistence.ErrStepNotFound); err != nil {
		return nil, err
	}

	return &step, nil
}

func (r *stepRepository) GetByCycle(ctx context.Context, cycleID string) ([]*models.WorkflowStep, error) {
	ids, err := r.p.ids("steps")
	if err != nil {
		return nil, err
	}

	steps := make([]*models.WorkflowStep, 0)

	for _, id := range ids {
		step, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if step.CycleID == cycleID {
			steps = append(steps, step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].AgentType < steps[j].AgentType })

	return steps, nil
}

func (r *stepRepository) GetByCycleAndAgent(ctx context.Context, cycleID string, agentType models.AgentType) (*models.WorkflowStep, error) {
	steps, err := r.GetByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	for _, step := range steps {
		if step.AgentType == agentType {
			return step, nil
		}
	}

	return nil, persistence.NewEntityError("GetByCycleAndAgent", "step", cycleID+"/"+string(agentType), persistence.ErrStepNotFound)
}

type taskRepository struct {
	p *Persistence
}

func (r *taskRepository) Save(_ context.Context, task *models.HumanTask) error {
	return r.p.write("tasks", task.ID, task)
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.HumanTask, error) {
	var task models.HumanTask
	if err := r.p.read("tasks", id, &task, persistence.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *taskRepository) GetByCycle(ctx context.Context, cycleID string) ([]*models.HumanTask, error) {
	ids, err := r.p.ids("tasks")
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.HumanTask, 0)

	for _, id := range ids {
		task, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if task.CycleID == cycleID {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	return tasks, nil
}

type issueRepository struct {
	p *Persistence
}

func (r *issueRepository) Save(_ context.Context, issue *models.Issue) error {
	return r.p.write("issues", issue.ID, issue)
}

func (r *issueRepository) GetByID(_ context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	if err := r.p.read("issues", id, &issue, persistence.ErrIssueNotFound); err != nil {
		return nil, err
	}

	return &issue, nil
}

func (r *issueRepository) GetAll(ctx context.Context) ([]*models.Issue, error) {
	ids, err := r.p.ids("issues")
	if err != nil {
		return nil, err
	}

	issues := make([]*models.Issue, 0, len(ids))

	for _, id := range ids {
		issue, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		issues = append(issues, issue)
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })

	return issues, nil
}

func (r *issueRepository) GetByStatus(ctx context.Context, statuses ...models.IssueStatus) ([]*models.Issue, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[models.IssueStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	issues := make([]*models.Issue, 0)

	for _, issue := range all {
		if wanted[issue.Status] {
			issues = append(issues, issue)
		}
	}

	return issues, nil
}

type auditRepository struct {
	p *Persistence
}

func (r *auditRepository) Append(_ context.Context, entry *models.AuditEntry) error {
	return r.p.write("audit", entry.ID, entry)
}

func (r *auditRepository) GetByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	ids, err := r.p.ids("audit")
	if err != nil {
		return nil, err
	}

	entries := make([]*models.AuditEntry, 0)

	for _, id := range ids {
		var entry models.AuditEntry
		if err := r.p.read("audit", id, &entry, persistence.ErrIssueNotFound); err != nil {
			return nil, err
		}

		if entry.EntityType == entityType && entry.EntityID == entityID {
			entries = append(entries, &entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })

	return entries, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
