package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/diligince/closeout/pkg/events"
	"github.com/diligince/closeout/pkg/eventbus"
	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/render"
	"github.com/diligince/closeout/pkg/storage"
)

// documentViewPath is where signed view links resolve. The query carries the
// storage key, expiry and signature.
const documentViewPath = "/api/v1/documents/view"

// Closeout owns the closure lifecycle of a workflow: checklist seeding and
// verification, certificate issuance, retention release and final closure.
// Every mutating command runs inside the per-workflow critical section and
// re-evaluates its preconditions against freshly loaded state.
type Closeout struct {
	persistence persistence.Persistence
	store       storage.Store
	signer      *storage.Signer
	renderer    render.CertificateRenderer
	publisher   eventbus.EventPublisher
	template    *ChecklistTemplate
	logger      *slog.Logger
	locks       *workflowLocks
}

// NewCloseout creates the closure service.
func NewCloseout(
	p persistence.Persistence,
	store storage.Store,
	signer *storage.Signer,
	renderer render.CertificateRenderer,
	publisher eventbus.EventPublisher,
	template *ChecklistTemplate,
	logger *slog.Logger,
) *Closeout {
	return &Closeout{
		persistence: p,
		store:       store,
		signer:      signer,
		renderer:    renderer,
		publisher:   publisher,
		template:    template,
		logger:      logger.With("service", "closeout"),
		locks:       newWorkflowLocks(),
	}
}

// CloseoutStatus is the full read model for the closeout screen: workflow
// status, the freshly evaluated gate and the three owned records.
type CloseoutStatus struct {
	WorkflowStatus models.WorkflowStatus    `json:"workflowStatus"`
	Gate           models.Gate              `json:"gate"`
	Checklist      []*models.ChecklistItem  `json:"checklist"`
	Certificate    *models.Certificate      `json:"certificate"`
	Retention      *models.RetentionPayment `json:"retentionPayment"`
}

// CloseResult is the outcome of a successful close command.
type CloseResult struct {
	Status        models.WorkflowStatus `json:"status"`
	ClosedAt      time.Time             `json:"closedAt"`
	CertificateNo string                `json:"certificateNo"`
}

// Status loads a consistent snapshot of the closure state and evaluates the
// gate. The gate is always computed here, never read back from storage.
func (c *Closeout) Status(ctx context.Context, workflowID string) (*CloseoutStatus, error) {
	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	items, cert, retention, err := c.loadCloseoutRecords(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return &CloseoutStatus{
		WorkflowStatus: workflow.Status,
		Gate:           models.EvaluateGate(workflow, cert, retention),
		Checklist:      items,
		Certificate:    cert,
		Retention:      retention,
	}, nil
}

// InitiateCloseout transitions active/completed to awaiting_closeout and
// atomically seeds the checklist. Requires every milestone completed and every
// payment recorded as paid.
func (c *Closeout) InitiateCloseout(ctx context.Context, workflowID string, actingParty models.Party) (*CloseoutStatus, error) {
	if !actingParty.IsActor() {
		return nil, ErrForbidden
	}

	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanInitiateCloseout() {
		return nil, ErrInvalidTransition
	}

	var unmet []string

	if !workflow.AllMilestonesComplete() {
		unmet = append(unmet, "all milestones must be completed")
	}

	if !workflow.AllPaymentsPaid() {
		unmet = append(unmet, "all milestone payments must be paid")
	}

	if len(unmet) > 0 {
		return nil, NewGateError(unmet...)
	}

	items := c.template.Items(workflowID)

	err = c.persistence.ChecklistRepository().SeedItems(ctx, workflowID, items)
	if err != nil {
		// A previous attempt seeded the checklist but failed before the
		// status flip. Resume from the stored items.
		if !errors.Is(err, persistence.ErrChecklistAlreadySeeded) {
			return nil, err
		}

		items, err = c.persistence.ChecklistRepository().ItemsByWorkflow(ctx, workflowID)
		if err != nil {
			return nil, err
		}
	}

	workflow.Status = models.WorkflowStatusAwaitingCloseout
	workflow.UpdatedAt = time.Now().UTC()

	if err := c.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Closeout initiated",
		"workflow_id", workflowID, "item_count", len(items), "initiated_by", actingParty)

	c.publish(ctx, workflowID, events.CloseoutInitiated{
		BaseEvent: newBaseEvent(events.CloseoutInitiatedEvent, workflowID),
		ItemCount: len(items),
	})

	_, cert, retention, err := c.loadCloseoutRecords(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return &CloseoutStatus{
		WorkflowStatus: workflow.Status,
		Gate:           models.EvaluateGate(workflow, cert, retention),
		Checklist:      items,
		Certificate:    cert,
		Retention:      retention,
	}, nil
}

// Close finalizes the workflow. Allowed only from awaiting_closeout when the
// gate reports readyToClose; the gate is re-evaluated here, inside the
// critical section, regardless of what the caller observed earlier.
func (c *Closeout) Close(ctx context.Context, workflowID, closureNotes string) (*CloseResult, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusAwaitingCloseout {
		return nil, ErrInvalidTransition
	}

	_, cert, retention, err := c.loadCloseoutRecords(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	gate := models.EvaluateGate(workflow, cert, retention)
	if !gate.ReadyToClose {
		var unmet []string

		if !gate.CertificateIssued {
			unmet = append(unmet, "completion certificate must be issued")
		}

		if workflow.HasRetention && !gate.RetentionReleased {
			unmet = append(unmet, "retention payment must be released")
		}

		return nil, NewGateError(unmet...)
	}

	now := time.Now().UTC()

	workflow.Status = models.WorkflowStatusClosed
	workflow.ClosureNotes = closureNotes
	workflow.ClosedAt = &now
	workflow.UpdatedAt = now

	if err := c.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Workflow closed",
		"workflow_id", workflowID, "certificate_no", cert.CertificateNo)

	c.publish(ctx, workflowID, events.WorkflowClosed{
		BaseEvent:     newBaseEvent(events.WorkflowClosedEvent, workflowID),
		CertificateNo: cert.CertificateNo,
		ClosedAt:      now,
	})
	c.publish(ctx, workflowID, events.PurchaseOrderCompleted{
		BaseEvent:       newBaseEvent(events.PurchaseOrderCompletedEvent, workflowID),
		PurchaseOrderID: workflow.PurchaseOrderID,
	})

	return &CloseResult{
		Status:        workflow.Status,
		ClosedAt:      now,
		CertificateNo: cert.CertificateNo,
	}, nil
}

func (c *Closeout) loadWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("load", workflowID, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (c *Closeout) loadCloseoutRecords(ctx context.Context, workflowID string) ([]*models.ChecklistItem, *models.Certificate, *models.RetentionPayment, error) {
	items, err := c.persistence.ChecklistRepository().ItemsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	cert, err := c.persistence.CertificateRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	retention, err := c.persistence.RetentionRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	return items, cert, retention, nil
}

func (c *Closeout) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, workflowID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", workflowID, "error", err)
	}
}

func newBaseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
