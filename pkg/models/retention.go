package models

import "time"

// RetentionStatus represents the release state of a retention payment.
type RetentionStatus string

const (
	RetentionStatusPending  RetentionStatus = "pending"
	RetentionStatusReleased RetentionStatus = "released"
)

// RetentionPayment records the withheld portion of the engagement value and
// its release attestation. Present only when the workflow was created with
// retention. The transition pending -> released happens exactly once.
type RetentionPayment struct {
	WorkflowID string          `json:"-"`
	Amount     float64         `json:"amount"`
	Status     RetentionStatus `json:"status"`
	ReleasedAt *time.Time      `json:"releasedAt,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}
