// Package persistence provides the data storage abstraction for closure
// workflows and their checklist, certificate and retention records.
package persistence

import (
	"context"

	"github.com/diligince/closeout/pkg/models"
)

// Persistence exposes the repositories for the closure consistency unit. A
// workflow exclusively owns its checklist items, certificate and retention
// payment; all four are keyed by workflow ID.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ChecklistRepository() ChecklistRepository
	CertificateRepository() CertificateRepository
	RetentionRepository() RetentionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions controls filtering, sorting and pagination for
// workflow listings.
type ListWorkflowsOptions struct {
	Limit  int
	Offset int

	Status  *models.WorkflowStatus
	Party   models.Party // Scope listing to one side of the engagement
	PartyID string

	SortBy    string
	SortOrder string
}

// WorkflowListResult is a page of workflows plus pagination metadata.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// GetByID returns nil, nil when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

type ChecklistRepository interface {
	// SeedItems atomically creates the full checklist for a workflow. It
	// fails with ErrChecklistAlreadySeeded if any items already exist.
	SeedItems(ctx context.Context, workflowID string, items []*models.ChecklistItem) error
	ItemsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChecklistItem, error)
	// GetItem returns nil, nil when the item does not exist.
	GetItem(ctx context.Context, workflowID, itemID string) (*models.ChecklistItem, error)
	SaveItem(ctx context.Context, item *models.ChecklistItem) error
}

type CertificateRepository interface {
	// GetByWorkflow returns nil, nil when no certificate has been issued.
	GetByWorkflow(ctx context.Context, workflowID string) (*models.Certificate, error)
	Save(ctx context.Context, cert *models.Certificate) error
}

type RetentionRepository interface {
	// GetByWorkflow returns nil, nil when the workflow carries no retention.
	GetByWorkflow(ctx context.Context, workflowID string) (*models.RetentionPayment, error)
	Save(ctx context.Context, payment *models.RetentionPayment) error
}
