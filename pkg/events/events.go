// Package events defines event types and structures for closure lifecycle
// notifications.
package events

import (
	"time"

	"github.com/diligince/closeout/pkg/models"
)

type EventType string

// Kafka topic for closure lifecycle events.
const Topic = "closeout.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Milestone fact events.
	MilestoneCompletedEvent EventType = "milestone.completed"
	MilestonePaidEvent      EventType = "milestone.paid"

	// Closeout lifecycle events.
	CloseoutInitiatedEvent EventType = "closeout.initiated"
	DocumentAttachedEvent  EventType = "closeout.document_attached"
	ItemVerifiedEvent      EventType = "closeout.item_verified"
	CertificateIssuedEvent EventType = "closeout.certificate_issued"
	RetentionReleasedEvent EventType = "closeout.retention_released"
	WorkflowClosedEvent    EventType = "workflow.closed"

	// PurchaseOrderCompletedEvent notifies the purchase-order collaborator
	// that the linked PO must be marked completed.
	PurchaseOrderCompletedEvent EventType = "purchase_order.completed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type MilestoneCompleted struct {
	BaseEvent

	MilestoneID string `json:"milestone_id"`
}

func (e MilestoneCompleted) GetType() EventType {
	return MilestoneCompletedEvent
}

type MilestonePaid struct {
	BaseEvent

	MilestoneID string  `json:"milestone_id"`
	Amount      float64 `json:"amount"`
}

func (e MilestonePaid) GetType() EventType {
	return MilestonePaidEvent
}

type CloseoutInitiated struct {
	BaseEvent

	ItemCount int `json:"item_count"`
}

func (e CloseoutInitiated) GetType() EventType {
	return CloseoutInitiatedEvent
}

type DocumentAttached struct {
	BaseEvent

	ItemID     string       `json:"item_id"`
	FileName   string       `json:"file_name"`
	UploadedBy models.Party `json:"uploaded_by"`
}

func (e DocumentAttached) GetType() EventType {
	return DocumentAttachedEvent
}

type ItemVerified struct {
	BaseEvent

	ItemID           string `json:"item_id"`
	AllItemsVerified bool   `json:"all_items_verified"`
}

func (e ItemVerified) GetType() EventType {
	return ItemVerifiedEvent
}

type CertificateIssued struct {
	BaseEvent

	CertificateNo string `json:"certificate_no"`
}

func (e CertificateIssued) GetType() EventType {
	return CertificateIssuedEvent
}

type RetentionReleased struct {
	BaseEvent

	Amount float64 `json:"amount"`
}

func (e RetentionReleased) GetType() EventType {
	return RetentionReleasedEvent
}

type WorkflowClosed struct {
	BaseEvent

	CertificateNo string    `json:"certificate_no"`
	ClosedAt      time.Time `json:"closed_at"`
}

func (e WorkflowClosed) GetType() EventType {
	return WorkflowClosedEvent
}

type PurchaseOrderCompleted struct {
	BaseEvent

	PurchaseOrderID string `json:"purchase_order_id"`
}

func (e PurchaseOrderCompleted) GetType() EventType {
	return PurchaseOrderCompletedEvent
}
