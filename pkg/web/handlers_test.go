package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-hq/custodia/pkg/audit"
	"github.com/custodia-hq/custodia/pkg/issues"
	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/orchestrator"
	"github.com/custodia-hq/custodia/pkg/persistence/memory"
	"github.com/custodia-hq/custodia/pkg/protocol"
	"github.com/custodia-hq/custodia/pkg/registry"
)

type okAgent struct {
	agentType models.AgentType
}

func (a *okAgent) Type() models.AgentType { return a.agentType }

func (a *okAgent) Execute(_ context.Context, _ models.AgentContext) (*models.AgentResult, error) {
	now := time.Now()

	return &models.AgentResult{
		Success:    true,
		AgentType:  a.agentType,
		Artifacts:  map[string]any{"summary": "done"},
		StartedAt:  now,
		FinishedAt: now,
	}, nil
}

type okFactory struct {
	agentType models.AgentType
}

func (f *okFactory) Type() models.AgentType { return f.agentType }

func (f *okFactory) Create(_ map[string]any, _ *slog.Logger) (protocol.Agent, error) {
	return &okAgent{agentType: f.agentType}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	for _, agentType := range models.AgentTypes() {
		reg.RegisterAgent(&okFactory{agentType: agentType})
	}

	sink := audit.NewPersistedSink(store.Audit(), nil, logger)

	orch, err := orchestrator.NewOrchestrator(store, reg, sink, nil, logger)
	require.NoError(t, err)

	engine := issues.NewEngine(store, sink, nil, issues.DefaultConfig(), logger)
	handlers := NewAPIHandlers(orch, engine, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	cycles := app.Group("/cycles")
	cycles.Post("/", handlers.StartCycle)
	cycles.Get("/:id/status", handlers.GetCycleStatus)
	cycles.Post("/:id/pause", handlers.PauseCycle)
	cycles.Post("/:id/resume", handlers.ResumeCycle)
	cycles.Post("/:id/agents/:agentType/trigger", handlers.TriggerAgent)
	cycles.Get("/:id/agents/:agentType/dependencies", handlers.GetDependencyStatus)
	cycles.Post("/:id/tasks", handlers.CreateTask)
	cycles.Get("/:id/tasks", handlers.GetTasks)

	tasks := app.Group("/tasks")
	tasks.Post("/:id/complete", handlers.CompleteTask)
	tasks.Post("/:id/escalate", handlers.EscalateTask)

	issuesGroup := app.Group("/issues")
	issuesGroup.Post("/", handlers.CreateIssue)
	issuesGroup.Get("/metrics", handlers.GetIssueMetrics)
	issuesGroup.Post("/escalation-scan", handlers.RunEscalationScan)
	issuesGroup.Get("/:id", handlers.GetIssue)
	issuesGroup.Post("/:id/assign", handlers.AssignIssue)
	issuesGroup.Post("/:id/resolve", handlers.ResolveIssue)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func startCycle(t *testing.T, app *fiber.App) models.CycleInstance {
	t.Helper()

	resp := doJSON(t, app, "POST", "/cycles/", StartCycleRequest{
		ReportID:  "BCBS239",
		PeriodEnd: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	return decodeBody[models.CycleInstance](t, resp)
}

func TestStartCycleEndpoint(t *testing.T) {
	app := newTestApp(t)

	cycle := startCycle(t, app)
	assert.NotEmpty(t, cycle.ID)
	assert.Equal(t, models.CycleStatusActive, cycle.Status)

	// Missing report_id fails validation.
	resp := doJSON(t, app, "POST", "/cycles/", StartCycleRequest{PeriodEnd: time.Now()})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCycleStatusEndpoint(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	resp := doJSON(t, app, "GET", "/cycles/"+cycle.ID+"/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	status := decodeBody[orchestrator.CycleStatus](t, resp)
	assert.Equal(t, cycle.ID, status.Cycle.ID)
	assert.Len(t, status.Steps, len(models.AgentTypes()))

	resp = doJSON(t, app, "GET", "/cycles/missing/status", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTriggerAgentEndpoint_DependencyConflict(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	// Blocked by unmet dependency.
	resp := doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/data_requirements/trigger", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "dependency_not_satisfied", body["type"])

	// The root agent has no dependencies and succeeds.
	resp = doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/regulatory_intelligence/trigger", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := decodeBody[models.AgentResult](t, resp)
	assert.True(t, result.Success)

	resp = doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/data_requirements/trigger", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTriggerAgentEndpoint_UnknownAgent(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	resp := doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/bogus/trigger", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPauseResumeEndpoints(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	resp := doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/pause", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// Triggering while paused maps to 409.
	resp = doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/regulatory_intelligence/trigger", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "cycle_paused", body["type"])

	resp = doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/resume", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/agents/regulatory_intelligence/trigger", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDependencyStatusEndpoint(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	resp := doJSON(t, app, "GET", "/cycles/"+cycle.ID+"/agents/data_requirements/dependencies", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, false, body["satisfied"])
}

func TestTaskEndpoints(t *testing.T) {
	app := newTestApp(t)
	cycle := startCycle(t, app)

	resp := doJSON(t, app, "POST", "/cycles/"+cycle.ID+"/tasks", CreateTaskRequest{
		TaskType: "cde_approval",
		Title:    "Approve critical data elements",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	task := decodeBody[models.HumanTask](t, resp)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	resp = doJSON(t, app, "POST", "/tasks/"+task.ID+"/escalate", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	escalated := decodeBody[models.HumanTask](t, resp)
	assert.Equal(t, 1, escalated.EscalationLevel)

	// A decision without rationale is rejected.
	resp = doJSON(t, app, "POST", "/tasks/"+task.ID+"/complete", CompleteTaskRequest{
		Outcome:   models.DecisionApprove,
		DecidedBy: "alice",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/tasks/"+task.ID+"/complete", CompleteTaskRequest{
		Outcome:   models.DecisionApprove,
		Rationale: "reviewed against policy",
		DecidedBy: "alice",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/cycles/"+cycle.ID+"/tasks", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	listing := decodeBody[map[string][]models.HumanTask](t, resp)
	require.Len(t, listing["tasks"], 1)
	assert.Equal(t, models.TaskStatusCompleted, listing["tasks"][0].Status)
}

func TestIssueEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, "POST", "/issues/", CreateIssueRequest{
		RuleResult: models.RuleExecutionResult{
			RuleID:        "dq-001",
			Passed:        false,
			FailedRecords: 10,
			TotalRecords:  500,
		},
		Context: models.IssueContext{CDEID: "cde-1", CDEApproved: true},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	issue := decodeBody[models.Issue](t, resp)
	assert.Equal(t, models.SeverityCritical, issue.Severity)
	assert.Equal(t, 1, issue.EscalationLevel)

	resp = doJSON(t, app, "GET", "/issues/"+issue.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/issues/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/issues/"+issue.ID+"/assign", AssignIssueRequest{Assignee: "alice"})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// Self-verification maps to 422.
	resp = doJSON(t, app, "POST", "/issues/"+issue.ID+"/resolve", ResolveIssueRequest{
		ImplementedBy: "alice",
		ConfirmedBy:   "alice",
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "four_eyes_violation", body["type"])

	resp = doJSON(t, app, "POST", "/issues/"+issue.ID+"/resolve", ResolveIssueRequest{
		ImplementedBy: "alice",
		Description:   "re-ran the load with the fixed mapping",
		ConfirmedBy:   "bob",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/issues/"+issue.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	closed := decodeBody[models.Issue](t, resp)
	assert.Equal(t, models.IssueStatusClosed, closed.Status)
}

func TestIssueEndpoints_PassingRuleRejected(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, "POST", "/issues/", CreateIssueRequest{
		RuleResult: models.RuleExecutionResult{RuleID: "dq-001", Passed: true},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestIssueMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, "POST", "/issues/", CreateIssueRequest{
		RuleResult: models.RuleExecutionResult{RuleID: "dq-001", Passed: false},
		Context:    models.IssueContext{DataDomain: "finance"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/issues/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	metrics := decodeBody[issues.Metrics](t, resp)
	assert.Equal(t, 1, metrics.OpenCount)
	assert.Equal(t, 1, metrics.OpenBySeverity[models.SeverityHigh])

	resp = doJSON(t, app, "GET", "/issues/metrics?severity=low", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	metrics = decodeBody[issues.Metrics](t, resp)
	assert.Zero(t, metrics.OpenCount)

	resp = doJSON(t, app, "GET", "/issues/metrics?severity=bogus", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/issues/metrics?created_after=not-a-time", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEscalationScanEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, "POST", "/issues/escalation-scan", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(0), body["escalated_count"])
}
