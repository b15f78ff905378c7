// Package web provides the HTTP handlers fronting the cycle orchestrator and
// the issue lifecycle engine.
package web

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/custodia-hq/custodia/pkg/issues"
	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/orchestrator"
)

type APIHandlers struct {
	orchestrator *orchestrator.Orchestrator
	issues       *issues.Engine
	validator    *validator.Validate
}

func NewAPIHandlers(o *orchestrator.Orchestrator, e *issues.Engine, v *validator.Validate) *APIHandlers {
	return &APIHandlers{
		orchestrator: o,
		issues:       e,
		validator:    v,
	}
}

func (h *APIHandlers) StartCycle(c fiber.Ctx) error {
	var req StartCycleRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	cycle, err := h.orchestrator.StartReportCycle(c.Context(), req.ReportID, req.PeriodEnd)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(cycle)
}

func (h *APIHandlers) GetCycleStatus(c fiber.Ctx) error {
	status, err := h.orchestrator.GetAgentStatus(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) PauseCycle(c fiber.Ctx) error {
	if err := h.orchestrator.PauseCycle(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResumeCycle(c fiber.Ctx) error {
	if err := h.orchestrator.ResumeCycle(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) TriggerAgent(c fiber.Ctx) error {
	var req TriggerAgentRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	agentType := models.AgentType(c.Params("agentType"))

	result, err := h.orchestrator.TriggerAgent(c.Context(), agentType, models.AgentContext{
		CycleID:   c.Params("id"),
		Artifacts: req.Artifacts,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetDependencyStatus(c fiber.Ctx) error {
	satisfied, err := h.orchestrator.AreDependenciesSatisfied(c.Context(), c.Params("id"), models.AgentType(c.Params("agentType")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"cycle_id":   c.Params("id"),
		"agent_type": c.Params("agentType"),
		"satisfied":  satisfied,
	})
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.orchestrator.CreateHumanTask(c.Context(), orchestrator.TaskInput{
		CycleID:  c.Params("id"),
		TaskType: req.TaskType,
		Title:    req.Title,
		Assignee: req.Assignee,
		DueDate:  req.DueDate,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks, err := h.orchestrator.GetHumanTasks(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.orchestrator.CompleteHumanTask(c.Context(), c.Params("id"), models.Decision{
		Outcome:   req.Outcome,
		Rationale: req.Rationale,
		DecidedBy: req.DecidedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EscalateTask(c fiber.Ctx) error {
	task, err := h.orchestrator.EscalateTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CreateIssue(c fiber.Ctx) error {
	var req CreateIssueRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	issue, err := h.issues.CreateIssue(c.Context(), req.RuleResult, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(issue)
}

func (h *APIHandlers) GetIssue(c fiber.Ctx) error {
	issue, err := h.issues.GetIssue(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(issue)
}

func (h *APIHandlers) AssignIssue(c fiber.Ctx) error {
	var req AssignIssueRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.issues.AssignIssue(c.Context(), c.Params("id"), req.Assignee); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResolveIssue(c fiber.Ctx) error {
	var req ResolveIssueRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.issues.ResolveIssue(c.Context(), c.Params("id"), models.Resolution{
		ImplementedBy: req.ImplementedBy,
		VerifiedBy:    req.VerifiedBy,
		Description:   req.Description,
	}, req.ConfirmedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunEscalationScan(c fiber.Ctx) error {
	escalated, err := h.issues.CheckEscalationNeeded(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"escalated_count": len(escalated),
		"escalated":       escalated,
	})
}

func (h *APIHandlers) GetIssueMetrics(c fiber.Ctx) error {
	filters := issues.Filters{
		Severity:   models.Severity(c.Query("severity")),
		ReportID:   c.Query("report_id"),
		DataDomain: c.Query("data_domain"),
		Assignee:   c.Query("assignee"),
	}

	if filters.Severity != "" && !models.IsValidSeverity(filters.Severity) {
		return badRequest(c, "invalid severity filter: "+string(filters.Severity))
	}

	if raw := c.Query("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "invalid created_after: "+err.Error())
		}

		filters.CreatedAfter = &t
	}

	if raw := c.Query("created_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "invalid created_before: "+err.Error())
		}

		filters.CreatedBefore = &t
	}

	metrics, err := h.issues.GetIssueMetrics(c.Context(), filters)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(metrics)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
