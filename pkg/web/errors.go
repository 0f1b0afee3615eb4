package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/trigger/manual"
	"github.com/dukex/watcher/pkg/watch"
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

// handleServiceError maps errors of the store and the execution service to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWatchNotFound(err), errors.Is(err, manual.ErrUnknownWatch):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("watch_not_found").
			WithDetail("watch not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, execution.ErrUnknownAction):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("action_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case errors.Is(err, watch.ErrInvalidWatch), errors.Is(err, execution.ErrInvalidRequest):
		return badRequest(c, err.Error())

	case errors.Is(err, execution.ErrNotStarted), errors.Is(err, manual.ErrNotStarted):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("not_started").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		return internalError(c, err)
	}
}
