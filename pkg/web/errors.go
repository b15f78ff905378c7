package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/custodia-hq/custodia/pkg/issues"
	"github.com/custodia-hq/custodia/pkg/orchestrator"
	"github.com/custodia-hq/custodia/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the service error taxonomy onto problem responses.
// Every rejection carries the human-readable reason the service produced.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case orchestrator.IsValidation(err) || issues.IsValidation(err):
		return badRequest(c, err.Error())

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	case orchestrator.IsDependencyNotSatisfied(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("dependency_not_satisfied").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case orchestrator.IsCyclePaused(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("cycle_paused").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case issues.IsFourEyesViolation(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("four_eyes_violation").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case orchestrator.IsAgentExecution(err):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("agent_execution_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
