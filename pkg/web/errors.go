package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/services"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

// invalidTransitionProblem extends the problem document with the targets the
// active configuration would have accepted, so UIs can offer them directly.
type invalidTransitionProblem struct {
	*problems.DefaultProblem

	AllowedTargets []models.Status `json:"allowed_targets"`
}

// invalidConfigProblem extends the problem document with the structural rule a
// rejected configuration violated.
type invalidConfigProblem struct {
	*problems.DefaultProblem

	Rule string `json:"rule,omitempty"`
}

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

// handleServiceError provides typed error handling for engine, service and
// persistence errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsNoOpTransition(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("no_op_transition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case workflow.IsInvalidTransition(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_transition").
			WithDetail(err.Error())

		var invalid *workflow.InvalidTransitionError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(invalidTransitionProblem{
				DefaultProblem: problem,
				AllowedTargets: invalid.Allowed,
			})
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case workflow.IsInvalidConfig(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_config").
			WithDetail(err.Error())

		var invalid *workflow.InvalidConfigError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(invalidConfigProblem{
				DefaultProblem: problem,
				Rule:           invalid.Rule,
			})
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case workflow.IsUnknownTriggerSource(err), services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case persistence.IsTransitionConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail("work order status changed concurrently; re-read and resubmit")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsDuplicateIdempotencyKey(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkOrderAlreadyExists(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail("work order already exists")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkOrderNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("work_order_not_found").
			WithDetail("work order not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsConfigVersionNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("config_version_not_found").
			WithDetail("workflow configuration version not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
