package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/services"
	"github.com/diligince/closeout/pkg/storage"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

// reject renders a business-rule rejection through the envelope. The state
// machine rejected cleanly; this is not a system fault.
func reject(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Success: false, Message: message})
}

func badRequest(c fiber.Ctx, message string) error {
	return reject(c, fiber.StatusBadRequest, message)
}

// storageProblem renders an infrastructure fault as an RFC 7807 problem.
// These are the retryable failures, reported distinctly from business
// rejections.
func storageProblem(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(502).
		WithInstance(c.Path()).
		WithType("storage_error").
		WithDetail(err.Error())

	return c.Status(fiber.StatusBadGateway).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service layer errors onto the wire. Business-rule
// rejections become envelope responses with a specific message; storage and
// unknown failures become problems.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return reject(c, fiber.StatusNotFound, "Workflow not found")

	case persistence.IsChecklistItemNotFound(err):
		return reject(c, fiber.StatusNotFound, "Checklist item not found")

	case errors.Is(err, services.ErrMilestoneNotFound):
		return reject(c, fiber.StatusNotFound, "Milestone not found")

	case errors.Is(err, services.ErrDocumentNotFound):
		return reject(c, fiber.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrForbidden):
		return reject(c, fiber.StatusForbidden, err.Error())

	case errors.Is(err, services.ErrInvalidTransition):
		return reject(c, fiber.StatusConflict, err.Error())

	case services.IsConflict(err):
		return reject(c, fiber.StatusConflict, err.Error())

	case errors.Is(err, services.ErrGateNotSatisfied),
		errors.Is(err, services.ErrMissingDocument),
		errors.Is(err, services.ErrNoRetention),
		errors.Is(err, services.ErrMilestoneNotCompleted):
		return reject(c, fiber.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, storage.ErrSignatureExpired):
		return reject(c, fiber.StatusGone, "Document link has expired")

	case errors.Is(err, storage.ErrSignatureInvalid):
		return reject(c, fiber.StatusForbidden, "Document link signature is invalid")

	case services.IsStorageError(err):
		return storageProblem(c, err)

	default:
		return internalError(c, err)
	}
}
