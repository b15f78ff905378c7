package issues

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-hq/custodia/pkg/audit"
	"github.com/custodia-hq/custodia/pkg/eventbus"
	"github.com/custodia-hq/custodia/pkg/events"
	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

// Engine is the issue lifecycle and escalation service. Safe for concurrent
// use; per-issue mutation is serialized by keyed locks. The clock is
// injectable so escalation behavior stays a pure function of "now".
type Engine struct {
	persistence persistence.Persistence
	auditor     audit.Sink
	publisher   eventbus.EventPublisher
	config      Config
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(
	p persistence.Persistence,
	auditor audit.Sink,
	publisher eventbus.EventPublisher,
	config Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		auditor:     auditor,
		publisher:   publisher,
		config:      config,
		logger:      logger.With("module", "issue_engine"),
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

// WithClock replaces the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

func (e *Engine) lock(issueID string) func() {
	e.mu.Lock()

	lock, ok := e.locks[issueID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[issueID] = lock
	}

	e.mu.Unlock()
	lock.Lock()

	return lock.Unlock
}

// CreateIssue turns a failed rule-execution result into an open issue.
// Passing results are rejected: no issue exists for a rule that passed.
// Critical issues are escalated synchronously at creation, bypassing the
// periodic scan.
func (e *Engine) CreateIssue(ctx context.Context, ruleResult models.RuleExecutionResult, issueCtx models.IssueContext) (*models.Issue, error) {
	if ruleResult.Passed {
		return nil, &ValidationError{Reason: "no issue is created for a passing rule result"}
	}

	if ruleResult.RuleID == "" {
		return nil, &ValidationError{Reason: "rule execution result requires a rule id"}
	}

	severity := e.deriveSeverity(issueCtx)
	now := e.now()
	due := now.Add(e.config.sla(severity))

	issue := &models.Issue{
		ID:         uuid.New().String(),
		Title:      fmt.Sprintf("Rule %s failed (%d of %d records)", ruleResult.RuleID, ruleResult.FailedRecords, ruleResult.TotalRecords),
		Severity:   severity,
		Status:     models.IssueStatusOpen,
		DueDate:    &due,
		RuleID:     ruleResult.RuleID,
		CDEID:      issueCtx.CDEID,
		DataDomain: issueCtx.DataDomain,
		ReportID:   issueCtx.ReportID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	escalated := false

	if severity == models.SeverityCritical {
		issue.EscalationLevel = 1
		issue.EscalatedAt = &now
		escalated = true
	}

	if err := e.persistence.Issues().Save(ctx, issue); err != nil {
		return nil, err
	}

	if err := e.auditor.Record(ctx, audit.Entry("issue_engine", models.ActorSystem, "issue.created", "issue", issue.ID, nil, issue)); err != nil {
		return nil, err
	}

	e.publish(ctx, issue.ID, events.IssueCreated{
		BaseEvent: e.baseEvent(events.IssueCreatedEvent),
		IssueID:   issue.ID,
		Severity:  issue.Severity,
		RuleID:    issue.RuleID,
		CDEID:     issue.CDEID,
	})

	if escalated {
		e.publish(ctx, issue.ID, events.IssueEscalated{
			BaseEvent:       e.baseEvent(events.IssueEscalatedEvent),
			IssueID:         issue.ID,
			Severity:        issue.Severity,
			EscalationLevel: issue.EscalationLevel,
		})

		e.logger.Warn("Critical issue escalated at creation", "issue_id", issue.ID, "rule_id", issue.RuleID)
	}

	return issue, nil
}

// deriveSeverity maps the issue context to a severity: an approved CDE makes
// the issue critical; an unapproved CDE reference ranks high; a bare data
// domain takes the configured domain criticality; anything else defaults to
// medium with no automatic assignee.
func (e *Engine) deriveSeverity(issueCtx models.IssueContext) models.Severity {
	if issueCtx.CDEID != "" && issueCtx.CDEApproved {
		return models.SeverityCritical
	}

	if issueCtx.CDEID != "" {
		return models.SeverityHigh
	}

	if issueCtx.DataDomain != "" {
		if severity, ok := e.config.DomainSeverity[issueCtx.DataDomain]; ok {
			return severity
		}

		return models.SeverityMedium
	}

	return models.SeverityMedium
}

// CheckEscalationNeeded scans open and in-progress issues whose due date has
// passed and escalates those overdue beyond the severity threshold. The scan
// is idempotent at any cadence: an issue escalates at most once per overdue
// window, tracked by escalated_at.
func (e *Engine) CheckEscalationNeeded(ctx context.Context) ([]*models.Issue, error) {
	candidates, err := e.persistence.Issues().GetByStatus(ctx, models.IssueStatusOpen, models.IssueStatusInProgress)
	if err != nil {
		return nil, err
	}

	now := e.now()
	escalated := make([]*models.Issue, 0)

	for _, candidate := range candidates {
		issue, err := e.escalateIfOverdue(ctx, candidate.ID, now)
		if err != nil {
			return nil, err
		}

		if issue != nil {
			escalated = append(escalated, issue)
		}
	}

	return escalated, nil
}

func (e *Engine) escalateIfOverdue(ctx context.Context, issueID string, now time.Time) (*models.Issue, error) {
	unlock := e.lock(issueID)
	defer unlock()

	issue, err := e.persistence.Issues().GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if issue.Status != models.IssueStatusOpen && issue.Status != models.IssueStatusInProgress {
		return nil, nil
	}

	if issue.DueDate == nil {
		return nil, nil
	}

	deadline := issue.DueDate.Add(e.config.threshold(issue.Severity))
	if !now.After(deadline) {
		return nil, nil
	}

	// Already escalated for this overdue window.
	if issue.EscalatedAt != nil && issue.EscalatedAt.After(deadline) {
		return nil, nil
	}

	if issue.EscalationLevel >= e.config.MaxEscalationLevel {
		return nil, nil
	}

	previous := *issue
	issue.EscalationLevel++
	issue.EscalatedAt = &now
	issue.UpdatedAt = now

	if err := e.persistence.Issues().Save(ctx, issue); err != nil {
		return nil, err
	}

	if err := e.auditor.Record(ctx, audit.Entry("issue_engine", models.ActorSystem, "issue.escalated", "issue", issue.ID, &previous, issue)); err != nil {
		return nil, err
	}

	e.publish(ctx, issue.ID, events.IssueEscalated{
		BaseEvent:       e.baseEvent(events.IssueEscalatedEvent),
		IssueID:         issue.ID,
		Severity:        issue.Severity,
		EscalationLevel: issue.EscalationLevel,
	})

	e.logger.Info("Issue escalated",
		"issue_id", issue.ID,
		"severity", issue.Severity,
		"escalation_level", issue.EscalationLevel)

	return issue, nil
}

// ResolveIssue records a resolution under the four-eyes gate. When the
// resolution names no verifier, confirmedBy becomes the verifier. A verifier
// equal to the implementer is rejected before any state mutation. A distinct
// verifier closes the issue; otherwise it parks at pending_verification until
// a second party confirms.
func (e *Engine) ResolveIssue(ctx context.Context, issueID string, resolution models.Resolution, confirmedBy string) error {
	if resolution.ImplementedBy == "" {
		return &ValidationError{Reason: "resolution requires the implementing actor"}
	}

	unlock := e.lock(issueID)
	defer unlock()

	issue, err := e.persistence.Issues().GetByID(ctx, issueID)
	if err != nil {
		return err
	}

	if issue.Status == models.IssueStatusClosed {
		return &ValidationError{Reason: fmt.Sprintf("issue %s is already closed", issueID)}
	}

	verifier := resolution.VerifiedBy
	if verifier == "" {
		verifier = confirmedBy
	}

	// Checked before any state mutation: a rejected resolution leaves the
	// issue exactly as it was.
	if verifier != "" && verifier == resolution.ImplementedBy {
		return &FourEyesViolationError{IssueID: issueID, Actor: verifier}
	}

	now := e.now()
	previous := *issue

	resolution.VerifiedBy = verifier

	if resolution.ImplementedAt.IsZero() {
		resolution.ImplementedAt = now
	}

	if verifier != "" {
		resolution.VerifiedAt = &now
		issue.Status = models.IssueStatusClosed
	} else {
		issue.Status = models.IssueStatusPendingVerification
	}

	issue.Resolution = &resolution
	issue.UpdatedAt = now

	if err := e.persistence.Issues().Save(ctx, issue); err != nil {
		return err
	}

	actor := confirmedBy
	if actor == "" {
		actor = resolution.ImplementedBy
	}

	entry := audit.Entry(actor, models.ActorHuman, "issue.resolved", "issue", issue.ID, &previous, issue)
	entry.Rationale = resolution.Description

	if err := e.auditor.Record(ctx, entry); err != nil {
		return err
	}

	e.publish(ctx, issue.ID, events.IssueResolved{
		BaseEvent:  e.baseEvent(events.IssueResolvedEvent),
		IssueID:    issue.ID,
		Status:     issue.Status,
		VerifiedBy: resolution.VerifiedBy,
	})

	return nil
}

// AssignIssue sets the assignee and moves an open issue to in_progress.
func (e *Engine) AssignIssue(ctx context.Context, issueID, assignee string) error {
	if assignee == "" {
		return &ValidationError{Reason: "assignee must not be empty"}
	}

	unlock := e.lock(issueID)
	defer unlock()

	issue, err := e.persistence.Issues().GetByID(ctx, issueID)
	if err != nil {
		return err
	}

	if issue.Status == models.IssueStatusClosed {
		return &ValidationError{Reason: fmt.Sprintf("issue %s is closed and cannot be reassigned", issueID)}
	}

	previous := *issue
	issue.Assignee = assignee

	if issue.Status == models.IssueStatusOpen {
		issue.Status = models.IssueStatusInProgress
	}

	issue.UpdatedAt = e.now()

	if err := e.persistence.Issues().Save(ctx, issue); err != nil {
		return err
	}

	if err := e.auditor.Record(ctx, audit.Entry("issue_engine", models.ActorSystem, "issue.assigned", "issue", issue.ID, &previous, issue)); err != nil {
		return err
	}

	e.publish(ctx, issue.ID, events.IssueAssigned{
		BaseEvent: e.baseEvent(events.IssueAssignedEvent),
		IssueID:   issue.ID,
		Assignee:  assignee,
	})

	return nil
}

// GetIssue returns one issue by id.
func (e *Engine) GetIssue(ctx context.Context, issueID string) (*models.Issue, error) {
	return e.persistence.Issues().GetByID(ctx, issueID)
}

func (e *Engine) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: e.now(),
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
