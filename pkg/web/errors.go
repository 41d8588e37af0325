package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowmesh/flowmesh/pkg/workflow"
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

func conflict(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps the aggregate error taxonomy onto HTTP statuses:
// validation 400, not found 404, invalid state and duplicates 409.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsNotFound(err):
		return notFound(c, err.Error())
	case workflow.IsValidationError(err):
		return badRequest(c, err.Error())
	case workflow.IsDuplicateEntity(err):
		return conflict(c, "duplicate_entity", err.Error())
	case workflow.IsInvalidState(err):
		return conflict(c, "invalid_state", err.Error())
	default:
		return internalError(c, err)
	}
}
