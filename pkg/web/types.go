// Package web provides HTTP request and response types for the closure API.
package web

import (
	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// Envelope is the marketplace response contract. Every business outcome,
// success or rejection, is wrapped in it so callers can distinguish
// business-rule failures from transport failures.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// CloseWorkflowRequest represents the request body for closing a workflow.
type CloseWorkflowRequest struct {
	ClosureNotes string `json:"closureNotes" validate:"max=2000"`
}

// ReleaseRetentionRequest represents the request body for releasing the
// retention payment.
type ReleaseRetentionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// VerifyItemResponse carries the updated item plus the aggregate flag so the
// caller can enable certificate issuance without a second read.
type VerifyItemResponse struct {
	Item             *models.ChecklistItem `json:"item"`
	AllItemsVerified bool                  `json:"allItemsVerified"`
}

// ViewLinkResponse is a signed, expiring document view link. URL is null when
// the document does not exist yet.
type ViewLinkResponse struct {
	URL *string `json:"url"`
}

// ListWorkflowsResponse is a page of workflows with pagination metadata.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"totalCount"`
	HasNextPage bool               `json:"hasNextPage"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
}

func newListWorkflowsResponse(result *persistence.WorkflowListResult, opts persistence.ListWorkflowsOptions) *ListWorkflowsResponse {
	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
}
