// Package models defines the core domain models for the project closure workflow.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a project workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive           WorkflowStatus = "active"            // Engagement in progress
	WorkflowStatusCompleted        WorkflowStatus = "completed"         // All milestones done, closeout not yet initiated
	WorkflowStatusAwaitingCloseout WorkflowStatus = "awaiting_closeout" // Closeout checklist in progress
	WorkflowStatusClosed           WorkflowStatus = "closed"            // Terminal, no transitions leave this state

	// Side-branch statuses. They exist on the engagement lifecycle but are
	// never part of the closure path.
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
	WorkflowStatusDisputed  WorkflowStatus = "disputed"
)

// Party identifies which side of the engagement acts or is required to act.
type Party string

const (
	PartyIndustry Party = "industry"
	PartyVendor   Party = "vendor"
	// PartyBoth is only valid as a checklist item requirement, never as an
	// acting party.
	PartyBoth Party = "both"
)

// IsActor reports whether p can act on a workflow (PartyBoth is a
// requirement marker, not an actor).
func (p Party) IsActor() bool {
	return p == PartyIndustry || p == PartyVendor
}

// Workflow represents a project engagement between an industry buyer and a
// vendor, created when the underlying purchase order is activated.
type Workflow struct {
	ID              string         `json:"id"`
	PurchaseOrderID string         `json:"purchaseOrderId" validate:"required"`
	ProjectTitle    string         `json:"projectTitle"    validate:"required,min=3"`
	IndustryID      string         `json:"industryId"      validate:"required"`
	VendorID        string         `json:"vendorId"        validate:"required"`
	Status          WorkflowStatus `json:"status"`
	HasRetention    bool           `json:"hasRetention"` // Fixed at creation
	TotalValue      float64        `json:"totalValue"`
	Currency        string         `json:"currency"`
	ClosureNotes    string         `json:"closureNotes,omitempty"`
	ClosedAt        *time.Time     `json:"closedAt,omitempty"`
	Milestones      []*Milestone   `json:"milestones"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CanInitiateCloseout reports whether the workflow status permits starting
// the closeout phase. Completed is treated identically to active.
func (w *Workflow) CanInitiateCloseout() bool {
	return w.Status == WorkflowStatusActive || w.Status == WorkflowStatusCompleted
}

// AllMilestonesComplete reports whether every milestone has been marked
// complete. A workflow with no milestones counts as complete.
func (w *Workflow) AllMilestonesComplete() bool {
	for _, m := range w.Milestones {
		if m.Status != MilestoneStatusCompleted {
			return false
		}
	}

	return true
}

// AllPaymentsPaid reports whether every milestone payment has been recorded
// as paid.
func (w *Workflow) AllPaymentsPaid() bool {
	for _, m := range w.Milestones {
		if m.PaymentStatus != PaymentStatusPaid {
			return false
		}
	}

	return true
}

// MilestoneByID returns the milestone with the given ID, or nil.
func (w *Workflow) MilestoneByID(id string) *Milestone {
	for _, m := range w.Milestones {
		if m.ID == id {
			return m
		}
	}

	return nil
}

// MilestoneStatus represents the completion state of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusCompleted MilestoneStatus = "completed"
)

// PaymentStatus represents the payment state of a milestone.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Milestone is an externally-owned fact the closure gate consumes. The
// closure subsystem records completion and payment attestations but does not
// move money.
type Milestone struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"   validate:"required"`
	Amount        float64         `json:"amount" validate:"gte=0"`
	Status        MilestoneStatus `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}
