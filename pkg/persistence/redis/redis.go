// Package redis provides a Redis-backed persistence implementation for
// production deployments. Entities are stored as JSON values with per-type
// index sets for listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

const keyPrefix = "custodia"

// Persistence implements the persistence.Persistence interface on top of a
// Redis instance. Per-key atomicity is provided by Redis itself.
type Persistence struct {
	client goredis.UniversalClient
}

// NewPersistence connects to the Redis instance described by the URL
// (redis://host:port/db).
func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Persistence{client: goredis.NewClient(opts)}, nil
}

// NewPersistenceWithClient wraps an existing client, mainly for tests.
func NewPersistenceWithClient(client goredis.UniversalClient) *Persistence {
	return &Persistence{client: client}
}

func (p *Persistence) Cycles() persistence.CycleRepository { return &cycleRepository{p} }
func (p *Persistence) Steps() persistence.StepRepository   { return &stepRepository{p} }
func (p *Persistence) Tasks() persistence.TaskRepository   { return &taskRepository{p} }
func (p *Persistence) Issues() persistence.IssueRepository { return &issueRepository{p} }
func (p *Persistence) Audit() persistence.AuditRepository  { return &auditRepository{p} }

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func entityKey(kind, id string) string {
	return strings.Join([]string{keyPrefix, kind, id}, ":")
}

func indexKey(kind string) string {
	return strings.Join([]string{keyPrefix, kind, "index"}, ":")
}

func (p *Persistence) set(ctx context.Context, kind, id string, entity any) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, entityKey(kind, id), raw, 0)
	pipe.SAdd(ctx, indexKey(kind), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewEntityError("Save", kind, id, err)
	}

	return nil
}

func (p *Persistence) get(ctx context.Context, kind, id string, entity any, notFound error) error {
	raw, err := p.client.Get(ctx, entityKey(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return persistence.NewEntityError("GetByID", kind, id, notFound)
		}

		return persistence.NewEntityError("GetByID", kind, id, err)
	}

	return json.Unmarshal(raw, entity)
}

func (p *Persistence) members(ctx context.Context, kind string) ([]string, error) {
	ids, err := p.client.SMembers(ctx, indexKey(kind)).Result()
	if err != nil {
		return nil, persistence.NewEntityError("List", kind, "", err)
	}

	sort.Strings(ids)

	return ids, nil
}

type cycleRepository struct {
	p *Persistence
}

func (r *cycleRepository) Save(ctx context.Context, cycle *models.CycleInstance) error {
	return r.p.set(ctx, "cycle", cycle.ID, cycle)
}

func (r *cycleRepository) GetByID(ctx context.Context, id string) (*models.CycleInstance, error) {
	var cycle models.CycleInstance
	if err := r.p.get(ctx, "cycle", id, &cycle, persistence.ErrCycleNotFound); err != nil {
		return nil, err
	}

	return &cycle, nil
}

func (r *cycleRepository) GetAll(ctx context.Context) ([]*models.CycleInstance, error) {
	ids, err := r.p.members(ctx, "cycle")
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

func (r *stepRepository) Save(ctx context.Context, step *models.WorkflowStep) error {
	if err := r.p.set(ctx, "step", step.ID, step); err != nil {
		return err
	}

	// Secondary index: step ids per cycle.
	return r.p.client.SAdd(ctx, entityKey("cycle", step.CycleID)+":steps", step.ID).Err()
}

func (r *stepRepository) GetByID(ctx context.Context, id string) (*models.WorkflowStep, error) {
	var step models.WorkflowStep
	if err := r.p.get(ctx, "step", id, &step, persistence.ErrStepNotFound); err != nil {
		return nil, err
	}

	return &step, nil
}

func (r *stepRepository) GetByCycle(ctx context.Context, cycleID string) ([]*models.WorkflowStep, error) {
	ids, err := r.p.client.SMembers(ctx, entityKey("cycle", cycleID)+":steps").Result()
	if err != nil {
		return nil, persistence.NewEntityError("GetByCycle", "step", cycleID, err)
	}

	sort.Strings(ids)

	steps := make([]*models.WorkflowStep, 0, len(ids))

	for _, id := range ids {
		step, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		steps = append(steps, step)
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

func (r *taskRepository) Save(ctx context.Context, task *models.HumanTask) error {
	return r.p.set(ctx, "task", task.ID, task)
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*models.HumanTask, error) {
	var task models.HumanTask
	if err := r.p.get(ctx, "task", id, &task, persistence.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *taskRepository) GetByCycle(ctx context.Context, cycleID string) ([]*models.HumanTask, error) {
	ids, err := r.p.members(ctx, "task")
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

	return tasks, nil
}

type issueRepository struct {
	p *Persistence
}

func (r *issueRepository) Save(ctx context.Context, issue *models.Issue) error {
	return r.p.set(ctx, "issue", issue.ID, issue)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	if err := r.p.get(ctx, "issue", id, &issue, persistence.ErrIssueNotFound); err != nil {
		return nil, err
	}

	return &issue, nil
}

func (r *issueRepository) GetAll(ctx context.Context) ([]*models.Issue, error) {
	ids, err := r.p.members(ctx, "issue")
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

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry %s: %w", entry.ID, err)
	}

	// The audit trail is an append-only list plus a per-entity index list.
	pipe := r.p.client.TxPipeline()
	pipe.RPush(ctx, entityKey("audit", "trail"), raw)
	pipe.RPush(ctx, entityKey("audit", entry.EntityType+":"+entry.EntityID), raw)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewEntityError("Append", "audit", entry.ID, err)
	}

	return nil
}

func (r *auditRepository) GetByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	raws, err := r.p.client.LRange(ctx, entityKey("audit", entityType+":"+entityID), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewEntityError("GetByEntity", "audit", entityID, err)
	}

	entries := make([]*models.AuditEntry, 0, len(raws))

	for _, raw := range raws {
		var entry models.AuditEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
