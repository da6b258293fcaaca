package file

import (
	"context"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// ChecklistRepository handles checklist-item file operations.
type ChecklistRepository struct {
	store *store
}

// SeedItems atomically creates the full checklist for a workflow.
func (cr *ChecklistRepository) SeedItems(_ context.Context, workflowID string, items []*models.ChecklistItem) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	rec, err := cr.store.load(workflowID)
	if err != nil {
		return err
	}

	if rec == nil {
		return persistence.NewWorkflowError("SeedItems", workflowID, persistence.ErrWorkflowNotFound)
	}

	if len(rec.Items) > 0 {
		return persistence.NewWorkflowError("SeedItems", workflowID, persistence.ErrChecklistAlreadySeeded)
	}

	rec.Items = items

	return cr.store.save(workflowID, rec)
}

// ItemsByWorkflow returns the workflow's checklist in seeded order.
func (cr *ChecklistRepository) ItemsByWorkflow(_ context.Context, workflowID string) ([]*models.ChecklistItem, error) {
	cr.store.mu.RLock()
	defer cr.store.mu.RUnlock()

	rec, err := cr.store.load(workflowID)
	if err != nil || rec == nil {
		return nil, err
	}

	return rec.Items, nil
}

// GetItem returns one checklist item, or nil when it does not exist.
func (cr *ChecklistRepository) GetItem(_ context.Context, workflowID, itemID string) (*models.ChecklistItem, error) {
	cr.store.mu.RLock()
	defer cr.store.mu.RUnlock()

	rec, err := cr.store.load(workflowID)
	if err != nil || rec == nil {
		return nil, err
	}

	for _, item := range rec.Items {
		if item.ID == itemID {
			return item, nil
		}
	}

	return nil, nil
}

// SaveItem stores an updated checklist item.
func (cr *ChecklistRepository) SaveItem(_ context.Context, item *models.ChecklistItem) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	rec, err := cr.store.load(item.WorkflowID)
	if err != nil {
		return err
	}

	if rec == nil {
		return persistence.NewWorkflowError("SaveItem", item.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	for i, existing := range rec.Items {
		if existing.ID == item.ID {
			rec.Items[i] = item

			return cr.store.save(item.WorkflowID, rec)
		}
	}

	return &persistence.ChecklistItemError{
		Op:         "SaveItem",
		WorkflowID: item.WorkflowID,
		ItemID:     item.ID,
		Err:        persistence.ErrChecklistItemNotFound,
	}
}

// CertificateRepository handles certificate file operations.
type CertificateRepository struct {
	store *store
}

// GetByWorkflow returns the workflow's certificate, or nil when none exists.
func (cr *CertificateRepository) GetByWorkflow(_ context.Context, workflowID string) (*models.Certificate, error) {
	cr.store.mu.RLock()
	defer cr.store.mu.RUnlock()

	rec, err := cr.store.load(workflowID)
	if err != nil || rec == nil {
		return nil, err
	}

	return rec.Certificate, nil
}

// Save stores the workflow's certificate record.
func (cr *CertificateRepository) Save(_ context.Context, cert *models.Certificate) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	rec, err := cr.store.load(cert.WorkflowID)
	if err != nil {
		return err
	}

	if rec == nil {
		return persistence.NewWorkflowError("Save", cert.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	rec.Certificate = cert

	return cr.store.save(cert.WorkflowID, rec)
}

// RetentionRepository handles retention-payment file operations.
type RetentionRepository struct {
	store *store
}

// GetByWorkflow returns the workflow's retention payment, or nil when the
// workflow carries no retention.
func (rr *RetentionRepository) GetByWorkflow(_ context.Context, workflowID string) (*models.RetentionPayment, error) {
	rr.store.mu.RLock()
	defer rr.store.mu.RUnlock()

	rec, err := rr.store.load(workflowID)
	if err != nil || rec == nil {
		return nil, err
	}

	return rec.Retention, nil
}

// Save stores the workflow's retention payment record.
func (rr *RetentionRepository) Save(_ context.Context, payment *models.RetentionPayment) error {
	rr.store.mu.Lock()
	defer rr.store.mu.Unlock()

	rec, err := rr.store.load(payment.WorkflowID)
	if err != nil {
		return err
	}

	if rec == nil {
		return persistence.NewWorkflowError("Save", payment.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	rec.Retention = payment

	return rr.store.save(payment.WorkflowID, rec)
}
