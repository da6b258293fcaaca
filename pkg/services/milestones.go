package services

import (
	"context"
	"time"

	"github.com/diligince/closeout/pkg/events"
	"github.com/diligince/closeout/pkg/models"
)

// MarkMilestoneComplete records that the vendor finished a milestone. These
// facts feed the closeout gate; they are only mutable before closeout starts.
func (c *Closeout) MarkMilestoneComplete(ctx context.Context, workflowID, milestoneID string, actingParty models.Party) (*models.Milestone, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanInitiateCloseout() {
		return nil, ErrInvalidTransition
	}

	if actingParty != models.PartyVendor {
		return nil, ErrForbidden
	}

	milestone := workflow.MilestoneByID(milestoneID)
	if milestone == nil {
		return nil, ErrMilestoneNotFound
	}

	if milestone.Status == models.MilestoneStatusCompleted {
		return nil, ErrMilestoneAlreadyComplete
	}

	now := time.Now().UTC()
	milestone.Status = models.MilestoneStatusCompleted
	milestone.CompletedAt = &now
	workflow.UpdatedAt = now

	if err := c.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	c.publish(ctx, workflowID, events.MilestoneCompleted{
		BaseEvent:   newBaseEvent(events.MilestoneCompletedEvent, workflowID),
		MilestoneID: milestoneID,
	})

	return milestone, nil
}

// MarkMilestonePaid records that the industry buyer paid a completed
// milestone.
func (c *Closeout) MarkMilestonePaid(ctx context.Context, workflowID, milestoneID string, actingParty models.Party) (*models.Milestone, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.CanInitiateCloseout() {
		return nil, ErrInvalidTransition
	}

	if actingParty != models.PartyIndustry {
		return nil, ErrForbidden
	}

	milestone := workflow.MilestoneByID(milestoneID)
	if milestone == nil {
		return nil, ErrMilestoneNotFound
	}

	if milestone.Status != models.MilestoneStatusCompleted {
		return nil, ErrMilestoneNotCompleted
	}

	if milestone.PaymentStatus == models.PaymentStatusPaid {
		return nil, ErrMilestoneAlreadyPaid
	}

	now := time.Now().UTC()
	milestone.PaymentStatus = models.PaymentStatusPaid
	milestone.PaidAt = &now
	workflow.UpdatedAt = now

	if err := c.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, err
	}

	c.publish(ctx, workflowID, events.MilestonePaid{
		BaseEvent:   newBaseEvent(events.MilestonePaidEvent, workflowID),
		MilestoneID: milestoneID,
		Amount:      milestone.Amount,
	})

	return milestone, nil
}
