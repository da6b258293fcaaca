// Package web provides HTTP handlers for the project closure API.
package web

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/services"
)

// ActingPartyHeader carries which side of the engagement is acting. Upstream
// auth resolves the caller to a party; this service only enforces party
// rules.
const ActingPartyHeader = "X-Acting-Party"

type APIHandlers struct {
	workflows *services.Workflows
	closeout  *services.Closeout
	validator *validator.Validate
}

func NewAPIHandlers(
	workflows *services.Workflows,
	closeout *services.Closeout,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		closeout:  closeout,
		validator: validator,
	}
}

// actingParty resolves the acting party header. PartyBoth is a checklist
// requirement marker, never a caller identity.
func actingParty(c fiber.Ctx) (models.Party, bool) {
	party := models.Party(c.Get(ActingPartyHeader))

	return party, party.IsActor()
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	opts, err := parseListWorkflowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflows.List(c.Context(), *opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return badRequest(c, err.Error())
		}

		return handleServiceError(c, err)
	}

	return ok(c, newListWorkflowsResponse(result, *opts))
}

func parseListWorkflowsOptions(c fiber.Ctx) (*persistence.ListWorkflowsOptions, error) {
	opts := &persistence.ListWorkflowsOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		opts.Status = &status
	}

	opts.Party = models.Party(c.Query("party"))
	opts.PartyID = c.Query("partyId")
	opts.SortBy = c.Query("sortBy")
	opts.SortOrder = c.Query("sortOrder")

	return opts, nil
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req services.CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.workflows.Create(c.Context(), &req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return created(c, workflow)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, workflow)
}

func (h *APIHandlers) CompleteMilestone(c fiber.Ctx) error {
	party, isActor := actingParty(c)
	if !isActor {
		return badRequest(c, "A valid "+ActingPartyHeader+" header is required")
	}

	milestone, err := h.closeout.MarkMilestoneComplete(c.Context(), c.Params("id"), c.Params("milestoneId"), party)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, milestone)
}

func (h *APIHandlers) PayMilestone(c fiber.Ctx) error {
	party, isActor := actingParty(c)
	if !isActor {
		return badRequest(c, "A valid "+ActingPartyHeader+" header is required")
	}

	milestone, err := h.closeout.MarkMilestonePaid(c.Context(), c.Params("id"), c.Params("milestoneId"), party)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, milestone)
}

func (h *APIHandlers) GetCloseoutStatus(c fiber.Ctx) error {
	status, err := h.closeout.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, status)
}

func (h *APIHandlers) InitiateCloseout(c fiber.Ctx) error {
	party, isActor := actingParty(c)
	if !isActor {
		return badRequest(c, "A valid "+ActingPartyHeader+" header is required")
	}

	status, err := h.closeout.InitiateCloseout(c.Context(), c.Params("id"), party)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, status)
}

func (h *APIHandlers) UploadDocument(c fiber.Ctx) error {
	party, isActor := actingParty(c)
	if !isActor {
		return badRequest(c, "A valid "+ActingPartyHeader+" header is required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A file is required in the 'file' form field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Could not read the uploaded file")
	}
	defer file.Close()

	item, err := h.closeout.AttachDocument(c.Context(), c.Params("id"), c.Params("itemId"), services.DocumentUpload{
		FileName: fileHeader.Filename,
		Content:  file,
	}, party)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, item)
}

func (h *APIHandlers) GetDocumentViewLink(c fiber.Ctx) error {
	url, err := h.closeout.DocumentViewURL(c.Context(), c.Params("id"), c.Params("itemId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, ViewLinkResponse{URL: &url})
}

func (h *APIHandlers) VerifyItem(c fiber.Ctx) error {
	party, isActor := actingParty(c)
	if !isActor {
		return badRequest(c, "A valid "+ActingPartyHeader+" header is required")
	}

	item, allVerified, err := h.closeout.VerifyItem(c.Context(), c.Params("id"), c.Params("itemId"), party)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, VerifyItemResponse{Item: item, AllItemsVerified: allVerified})
}

func (h *APIHandlers) IssueCertificate(c fiber.Ctx) error {
	cert, err := h.closeout.IssueCertificate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, cert)
}

func (h *APIHandlers) GetCertificateViewLink(c fiber.Ctx) error {
	url, err := h.closeout.CertificateViewURL(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	// URL is null while the certificate is not issued.
	return ok(c, ViewLinkResponse{URL: url})
}

func (h *APIHandlers) ReleaseRetention(c fiber.Ctx) error {
	var req ReleaseRetentionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	retention, err := h.closeout.ReleaseRetention(c.Context(), c.Params("id"), req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, retention)
}

func (h *APIHandlers) CloseWorkflow(c fiber.Ctx) error {
	var req CloseWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.closeout.Close(c.Context(), c.Params("id"), req.ClosureNotes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, result)
}

// ViewDocument resolves a signed view link and streams the stored file.
func (h *APIHandlers) ViewDocument(c fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return badRequest(c, "Document key is required")
	}

	reader, err := h.closeout.OpenDocument(c.Context(), key, c.Query("exp"), c.Query("sig"))
	if err != nil {
		return handleServiceError(c, err)
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Set(fiber.HeaderContentType, contentType)

	return c.SendStream(reader)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.workflows.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
