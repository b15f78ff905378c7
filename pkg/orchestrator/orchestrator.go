package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/custodia-hq/custodia/pkg/audit"
	"github.com/custodia-hq/custodia/pkg/eventbus"
	"github.com/custodia-hq/custodia/pkg/events"
	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
	"github.com/custodia-hq/custodia/pkg/registry"
)

// Orchestrator coordinates reporting cycles: it creates the workflow steps,
// enforces the agent dependency graph, and manages human checkpoint tasks.
// Safe for concurrent use; per-entity mutation is serialized by keyed locks.
type Orchestrator struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	auditor     audit.Sink
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
	locks       *keyedMutex
	now         func() time.Time
}

// NewOrchestrator wires the orchestrator. It validates the static dependency
// graph before returning so a broken table is caught at startup, never at
// trigger time.
func NewOrchestrator(
	p persistence.Persistence,
	reg *registry.Registry,
	auditor audit.Sink,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if err := models.ValidateDependencyGraph(models.DependencyGraph()); err != nil {
		return nil, fmt.Errorf("invalid agent dependency graph: %w", err)
	}

	return &Orchestrator{
		persistence: p,
		registry:    reg,
		auditor:     auditor,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "orchestrator"),
		locks:       newKeyedMutex(),
		now:         time.Now,
	}, nil
}

// CycleStatus is the inspection view returned by GetAgentStatus.
type CycleStatus struct {
	Cycle *models.CycleInstance  `json:"cycle"`
	Steps []*models.WorkflowStep `json:"steps"`
}

// TaskInput describes a human task to create at a workflow checkpoint.
type TaskInput struct {
	CycleID  string     `json:"cycle_id"  validate:"required"`
	TaskType string     `json:"task_type" validate:"required"`
	Title    string     `json:"title"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// StartReportCycle creates a new active cycle and one pending workflow step
// per agent type, each pre-populated with its dependency set from the static
// graph. Duplicate calls create independent cycles; callers are expected to
// call once per reporting period.
func (o *Orchestrator) StartReportCycle(ctx context.Context, reportID string, periodEnd time.Time) (*models.CycleInstance, error) {
	if reportID == "" {
		return nil, &ValidationError{Reason: "report id must not be empty"}
	}

	if periodEnd.IsZero() {
		return nil, &ValidationError{Reason: "period end must be set"}
	}

	now := o.now()
	cycle := &models.CycleInstance{
		ID:        uuid.New().String(),
		ReportID:  reportID,
		PeriodEnd: periodEnd,
		Status:    models.CycleStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.persistence.Cycles().Save(ctx, cycle); err != nil {
		return nil, err
	}

	graph := models.DependencyGraph()

	for _, agentType := range models.AgentTypes() {
		step := &models.WorkflowStep{
			ID:           uuid.New().String(),
			CycleID:      cycle.ID,
			AgentType:    agentType,
			Dependencies: graph[agentType],
			Status:       models.StepStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := o.persistence.Steps().Save(ctx, step); err != nil {
			return nil, err
		}
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "cycle.started", "cycle", cycle.ID, nil, cycle)); err != nil {
		return nil, err
	}

	o.publish(ctx, cycle.ID, events.CycleStarted{
		BaseEvent: o.baseEvent(events.CycleStartedEvent),
		CycleID:   cycle.ID,
		ReportID:  reportID,
		PeriodEnd: periodEnd,
	})

	o.logger.Info("Started report cycle", "cycle_id", cycle.ID, "report_id", reportID)

	return cycle, nil
}

// TriggerAgent runs one agent unit for the cycle named in agentCtx. The call
// is synchronous: it returns after the agent finishes or fails. There is no
// automatic retry; a failed step stays failed until re-triggered.
func (o *Orchestrator) TriggerAgent(ctx context.Context, agentType models.AgentType, agentCtx models.AgentContext) (*models.AgentResult, error) {
	if !models.IsValidAgentType(agentType) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown agent type %q", agentType)}
	}

	if agentCtx.CycleID == "" {
		return nil, &ValidationError{Reason: "agent context requires a cycle id"}
	}

	unlock := o.locks.Lock("step:" + agentCtx.CycleID + ":" + string(agentType))
	defer unlock()

	cycle, err := o.persistence.Cycles().GetByID(ctx, agentCtx.CycleID)
	if err != nil {
		return nil, err
	}

	switch cycle.Status {
	case models.CycleStatusPaused:
		return nil, &CyclePausedError{CycleID: cycle.ID}
	case models.CycleStatusCompleted:
		return nil, &ValidationError{Reason: fmt.Sprintf("cycle %s is completed and accepts no further agents", cycle.ID)}
	case models.CycleStatusActive:
	}

	step, err := o.persistence.Steps().GetByCycleAndAgent(ctx, cycle.ID, agentType)
	if err != nil {
		return nil, err
	}

	if step.Status == models.StepStatusCompleted {
		return nil, &ValidationError{Reason: fmt.Sprintf("agent %s already completed for cycle %s", agentType, cycle.ID)}
	}

	if step.Status == models.StepStatusInProgress {
		return nil, &ValidationError{Reason: fmt.Sprintf("agent %s is already running for cycle %s", agentType, cycle.ID)}
	}

	missing, err := o.missingDependencies(ctx, step)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		return nil, &DependencyNotSatisfiedError{CycleID: cycle.ID, AgentType: agentType, Missing: missing}
	}

	agent, err := o.registry.CreateAgent(agentType, nil)
	if err != nil {
		return nil, err
	}

	previous := *step
	started := o.now()
	step.Status = models.StepStatusInProgress
	step.StartedAt = &started
	step.UpdatedAt = started
	step.LastError = ""

	if err := o.persistence.Steps().Save(ctx, step); err != nil {
		return nil, err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "agent.triggered", "step", step.ID, &previous, step)); err != nil {
		return nil, err
	}

	o.publish(ctx, cycle.ID, events.AgentTriggered{
		BaseEvent: o.baseEvent(events.AgentTriggeredEvent),
		CycleID:   cycle.ID,
		StepID:    step.ID,
		AgentType: agentType,
	})

	agentCtx.ReportID = cycle.ReportID
	agentCtx.Phase = agentType

	result, execErr := agent.Execute(ctx, agentCtx)

	if execErr == nil && result != nil && result.Success {
		if err := o.registry.ValidateArtifacts(agentType, result.Artifacts); err != nil {
			execErr = err
		}
	} else if execErr == nil {
		if result == nil {
			execErr = errors.New("agent returned no result")
		} else {
			execErr = errors.New(result.Error)
		}
	}

	if execErr != nil {
		return nil, o.failStep(ctx, cycle, step, execErr)
	}

	return result, o.completeStep(ctx, cycle, step, started, result)
}

func (o *Orchestrator) failStep(ctx context.Context, cycle *models.CycleInstance, step *models.WorkflowStep, execErr error) error {
	previous := *step
	now := o.now()
	step.Status = models.StepStatusFailed
	step.LastError = execErr.Error()
	step.UpdatedAt = now

	if err := o.persistence.Steps().Save(ctx, step); err != nil {
		return err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "agent.failed", "step", step.ID, &previous, step)); err != nil {
		return err
	}

	o.publish(ctx, cycle.ID, events.AgentFailed{
		BaseEvent: o.baseEvent(events.AgentFailedEvent),
		CycleID:   cycle.ID,
		StepID:    step.ID,
		AgentType: step.AgentType,
		Error:     execErr.Error(),
	})

	o.logger.Error("Agent execution failed",
		"cycle_id", cycle.ID,
		"agent_type", step.AgentType,
		"error", execErr)

	return &AgentExecutionError{CycleID: cycle.ID, AgentType: step.AgentType, Err: execErr}
}

func (o *Orchestrator) completeStep(ctx context.Context, cycle *models.CycleInstance, step *models.WorkflowStep, started time.Time, result *models.AgentResult) error {
	previous := *step
	now := o.now()
	step.Status = models.StepStatusCompleted
	step.CompletedAt = &now
	step.UpdatedAt = now

	if err := o.persistence.Steps().Save(ctx, step); err != nil {
		return err
	}

	previousCycle := *cycle
	cycle.CurrentPhase = step.AgentType
	cycle.UpdatedAt = now

	allDone, err := o.allStepsCompleted(ctx, cycle.ID)
	if err != nil {
		return err
	}

	if allDone {
		cycle.Status = models.CycleStatusCompleted
	}

	if err := o.persistence.Cycles().Save(ctx, cycle); err != nil {
		return err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "agent.completed", "step", step.ID, &previous, step)); err != nil {
		return err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "cycle.phase_advanced", "cycle", cycle.ID, &previousCycle, cycle)); err != nil {
		return err
	}

	o.publish(ctx, cycle.ID, events.AgentCompleted{
		BaseEvent: o.baseEvent(events.AgentCompletedEvent),
		CycleID:   cycle.ID,
		StepID:    step.ID,
		AgentType: step.AgentType,
		Duration:  now.Sub(started),
	})

	if allDone {
		o.publish(ctx, cycle.ID, events.CycleCompleted{
			BaseEvent: o.baseEvent(events.CycleCompletedEvent),
			CycleID:   cycle.ID,
		})
	}

	o.logger.Info("Agent completed",
		"cycle_id", cycle.ID,
		"agent_type", step.AgentType,
		"artifacts", len(result.Artifacts))

	return nil
}

// PauseCycle holds the cycle at a human checkpoint. While paused,
// TriggerAgent rejects every call with CyclePausedError.
func (o *Orchestrator) PauseCycle(ctx context.Context, cycleID string) error {
	unlock := o.locks.Lock("cycle:" + cycleID)
	defer unlock()

	cycle, err := o.persistence.Cycles().GetByID(ctx, cycleID)
	if err != nil {
		return err
	}

	if cycle.Status != models.CycleStatusActive {
		return &ValidationError{Reason: fmt.Sprintf("cannot pause cycle %s in status %s", cycleID, cycle.Status)}
	}

	previous := *cycle
	cycle.Status = models.CycleStatusPaused
	cycle.UpdatedAt = o.now()

	if err := o.persistence.Cycles().Save(ctx, cycle); err != nil {
		return err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "cycle.paused", "cycle", cycle.ID, &previous, cycle)); err != nil {
		return err
	}

	o.publish(ctx, cycle.ID, events.CyclePaused{BaseEvent: o.baseEvent(events.CyclePausedEvent), CycleID: cycle.ID})

	return nil
}

// ResumeCycle reactivates a paused cycle.
func (o *Orchestrator) ResumeCycle(ctx context.Context, cycleID string) error {
	unlock := o.locks.Lock("cycle:" + cycleID)
	defer unlock()

	cycle, err := o.persistence.Cycles().GetByID(ctx, cycleID)
	if err != nil {
		return err
	}

	if cycle.Status != models.CycleStatusPaused {
		return &ValidationError{Reason: fmt.Sprintf("cannot resume cycle %s in status %s", cycleID, cycle.Status)}
	}

	previous := *cycle
	cycle.Status = models.CycleStatusActive
	cycle.UpdatedAt = o.now()

	if err := o.persistence.Cycles().Save(ctx, cycle); err != nil {
		return err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "cycle.resumed", "cycle", cycle.ID, &previous, cycle)); err != nil {
		return err
	}

	o.publish(ctx, cycle.ID, events.CycleResumed{BaseEvent: o.baseEvent(events.CycleResumedEvent), CycleID: cycle.ID})

	return nil
}

// CreateHumanTask opens a checkpoint task. Tasks are independent of the
// dependency graph; agent logic may consult them before reporting success.
func (o *Orchestrator) CreateHumanTask(ctx context.Context, input TaskInput) (*models.HumanTask, error) {
	if err := o.validate.Struct(input); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if _, err := o.persistence.Cycles().GetByID(ctx, input.CycleID); err != nil {
		return nil, err
	}

	now := o.now()
	task := &models.HumanTask{
		ID:        uuid.New().String(),
		CycleID:   input.CycleID,
		TaskType:  input.TaskType,
		Title:     input.Title,
		Status:    models.TaskStatusPending,
		Assignee:  input.Assignee,
		DueDate:   input.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.persistence.Tasks().Save(ctx, task); err != nil {
		return nil, err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "task.created", "task", task.ID, nil, task)); err != nil {
		return nil, err
	}

	o.publish(ctx, task.CycleID, events.TaskCreated{
		BaseEvent: o.baseEvent(events.TaskCreatedEvent),
		TaskID:    task.ID,
		CycleID:   task.CycleID,
		TaskType:  task.TaskType,
	})

	return task, nil
}

// CompleteHumanTask records the decision and closes the task. The decision
// is immutable once recorded and requires a non-empty rationale.
func (o *Orchestrator) CompleteHumanTask(ctx context.Context, taskID string, decision models.Decision) error {
	if err := o.validate.Struct(decision); err != nil {
		return &ValidationError{Reason: "decision requires an outcome, a deciding actor and a non-empty rationale"}
	}

	unlock := o.locks.Lock("task:" + taskID)
	defer unlock()

	task, err := o.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status == models.TaskStatusCompleted {
		return &ValidationError{Reason: fmt.Sprintf("task %s is already completed", taskID)}
	}

	previous := *task
	now := o.now()

	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = now
	}

	task.Status = models.TaskStatusCompleted
	task.Decision = &decision
	task.UpdatedAt = now

	if err := o.persistence.Tasks().Save(ctx, task); err != nil {
		return err
	}

	entry := audit.Entry(decision.DecidedBy, models.ActorHuman, "task.completed", "task", task.ID, &previous, task)
	entry.Rationale = decision.Rationale

	if err := o.auditor.Record(ctx, entry); err != nil {
		return err
	}

	o.publish(ctx, task.CycleID, events.TaskCompleted{
		BaseEvent: o.baseEvent(events.TaskCompletedEvent),
		TaskID:    task.ID,
		CycleID:   task.CycleID,
		Outcome:   decision.Outcome,
	})

	return nil
}

// EscalateTask raises the task's escalation level by one. Safe under
// repeated or concurrent calls; the level only increases.
func (o *Orchestrator) EscalateTask(ctx context.Context, taskID string) (*models.HumanTask, error) {
	unlock := o.locks.Lock("task:" + taskID)
	defer unlock()

	task, err := o.persistence.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status == models.TaskStatusCompleted {
		return nil, &ValidationError{Reason: fmt.Sprintf("task %s is completed and cannot be escalated", taskID)}
	}

	previous := *task
	task.EscalationLevel++
	task.Status = models.TaskStatusEscalated
	task.UpdatedAt = o.now()

	if err := o.persistence.Tasks().Save(ctx, task); err != nil {
		return nil, err
	}

	if err := o.auditor.Record(ctx, audit.Entry("orchestrator", models.ActorSystem, "task.escalated", "task", task.ID, &previous, task)); err != nil {
		return nil, err
	}

	o.publish(ctx, task.CycleID, events.TaskEscalated{
		BaseEvent:       o.baseEvent(events.TaskEscalatedEvent),
		TaskID:          task.ID,
		CycleID:         task.CycleID,
		EscalationLevel: task.EscalationLevel,
	})

	return task, nil
}

// AreDependenciesSatisfied is a pure query with no side effects, exposed for
// inspection and testing.
func (o *Orchestrator) AreDependenciesSatisfied(ctx context.Context, cycleID string, agentType models.AgentType) (bool, error) {
	step, err := o.persistence.Steps().GetByCycleAndAgent(ctx, cycleID, agentType)
	if err != nil {
		return false, err
	}

	missing, err := o.missingDependencies(ctx, step)
	if err != nil {
		return false, err
	}

	return len(missing) == 0, nil
}

// GetAgentStatus returns the cycle and its per-step progress.
func (o *Orchestrator) GetAgentStatus(ctx context.Context, cycleID string) (*CycleStatus, error) {
	cycle, err := o.persistence.Cycles().GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	steps, err := o.persistence.Steps().GetByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	return &CycleStatus{Cycle: cycle, Steps: steps}, nil
}

// GetHumanTasks returns the checkpoint tasks for a cycle.
func (o *Orchestrator) GetHumanTasks(ctx context.Context, cycleID string) ([]*models.HumanTask, error) {
	return o.persistence.Tasks().GetByCycle(ctx, cycleID)
}

func (o *Orchestrator) missingDependencies(ctx context.Context, step *models.WorkflowStep) ([]models.AgentType, error) {
	missing := make([]models.AgentType, 0)

	for _, dep := range step.Dependencies {
		depStep, err := o.persistence.Steps().GetByCycleAndAgent(ctx, step.CycleID, dep)
		if err != nil {
			return nil, err
		}

		if depStep.Status != models.StepStatusCompleted {
			missing = append(missing, dep)
		}
	}

	return missing, nil
}

func (o *Orchestrator) allStepsCompleted(ctx context.Context, cycleID string) (bool, error) {
	steps, err := o.persistence.Steps().GetByCycle(ctx, cycleID)
	if err != nil {
		return false, err
	}

	for _, step := range steps {
		if step.Status != models.StepStatusCompleted {
			return false, nil
		}
	}

	return len(steps) > 0, nil
}

func (o *Orchestrator) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: o.now(),
	}
}

// publish is best effort: event delivery must never fail a mutation that is
// already durable. Failures are logged.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.Warn("Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
