package services

import (
	"context"
	"time"

	"github.com/diligince/closeout/pkg/events"
	"github.com/diligince/closeout/pkg/models"
)

// ReleaseRetention records the release of the retention payment. The funds
// transfer itself happens out of band; this is attestation only. Allowed only
// while awaiting_closeout on workflows created with retention, and exactly
// once.
func (c *Closeout) ReleaseRetention(ctx context.Context, workflowID, notes string) (*models.RetentionPayment, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusAwaitingCloseout {
		return nil, ErrInvalidTransition
	}

	if !workflow.HasRetention {
		return nil, ErrNoRetention
	}

	retention, err := c.persistence.RetentionRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if retention == nil {
		return nil, ErrNoRetention
	}

	if retention.Status == models.RetentionStatusReleased {
		return nil, ErrRetentionAlreadyReleased
	}

	now := time.Now().UTC()
	retention.Status = models.RetentionStatusReleased
	retention.ReleasedAt = &now
	retention.Notes = notes

	if err := c.persistence.RetentionRepository().Save(ctx, retention); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Retention released",
		"workflow_id", workflowID, "amount", retention.Amount)

	c.publish(ctx, workflowID, events.RetentionReleased{
		BaseEvent: newBaseEvent(events.RetentionReleasedEvent, workflowID),
		Amount:    retention.Amount,
	})

	return retention, nil
}
