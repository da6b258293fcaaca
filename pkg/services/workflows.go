package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// Workflows manages the workflow records themselves: creation when an
// engagement is activated, and the party-scoped listings behind the two
// dashboards.
type Workflows struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewWorkflows creates the workflow service.
func NewWorkflows(p persistence.Persistence, logger *slog.Logger) *Workflows {
	return &Workflows{
		persistence: p,
		logger:      logger.With("service", "workflows"),
	}
}

// CreateWorkflowRequest is the input for activating a new engagement.
type CreateWorkflowRequest struct {
	PurchaseOrderID string            `json:"purchaseOrderId" validate:"required"`
	ProjectTitle    string            `json:"projectTitle"    validate:"required,min=3"`
	IndustryID      string            `json:"industryId"      validate:"required"`
	VendorID        string            `json:"vendorId"        validate:"required"`
	TotalValue      float64           `json:"totalValue"      validate:"gte=0"`
	Currency        string            `json:"currency"`
	HasRetention    bool              `json:"hasRetention"`
	RetentionAmount float64           `json:"retentionAmount" validate:"gte=0"`
	Milestones      []CreateMilestone `json:"milestones"      validate:"dive"`
}

// CreateMilestone is one milestone in a creation request.
type CreateMilestone struct {
	Name    string     `json:"name"   validate:"required"`
	Amount  float64    `json:"amount" validate:"gte=0"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// Create activates a workflow for a purchase order. When the engagement
// carries retention, the pending retention record is created alongside it.
func (s *Workflows) Create(ctx context.Context, req *CreateWorkflowRequest) (*models.Workflow, error) {
	now := time.Now().UTC()

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	workflow := &models.Workflow{
		ID:              uuid.Must(uuid.NewV7()).String(),
		PurchaseOrderID: req.PurchaseOrderID,
		ProjectTitle:    req.ProjectTitle,
		IndustryID:      req.IndustryID,
		VendorID:        req.VendorID,
		Status:          models.WorkflowStatusActive,
		HasRetention:    req.HasRetention,
		TotalValue:      req.TotalValue,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, m := range req.Milestones {
		workflow.Milestones = append(workflow.Milestones, &models.Milestone{
			ID:            uuid.Must(uuid.NewV7()).String(),
			Name:          m.Name,
			Amount:        m.Amount,
			Status:        models.MilestoneStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			DueDate:       m.DueDate,
		})
	}

	if err := s.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	if req.HasRetention {
		retention := &models.RetentionPayment{
			WorkflowID: workflow.ID,
			Amount:     req.RetentionAmount,
			Status:     models.RetentionStatusPending,
		}

		if err := s.persistence.RetentionRepository().Save(ctx, retention); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", workflow.ID, "purchase_order_id", workflow.PurchaseOrderID,
		"has_retention", workflow.HasRetention)

	return workflow, nil
}

// Get loads a workflow by ID.
func (s *Workflows) Get(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("load", workflowID, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// List returns a page of workflows, optionally scoped to one party and
// filtered by status.
func (s *Workflows) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	return s.persistence.WorkflowRepository().List(ctx, opts)
}

// HealthCheck reports whether the backing store is reachable.
func (s *Workflows) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.persistence.HealthCheck(ctx); err != nil {
		return err.Error(), false
	}

	return "repository is healthy", true
}
