package models

import "time"

// ChecklistItem is a document requirement on the closeout checklist. The full
// set is seeded when closeout is initiated and items are never deleted.
type ChecklistItem struct {
	ID           string             `json:"itemId"`
	WorkflowID   string             `json:"-"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	RequiredFrom Party              `json:"requiredFrom"`
	Document     *ChecklistDocument `json:"document"`
	Verified     bool               `json:"verified"`
	VerifiedAt   *time.Time         `json:"verifiedAt,omitempty"`
	Position     int                `json:"-"` // Stable checklist ordering
}

// ChecklistDocument is the uploaded evidence attached to a checklist item.
// FileKey is the document-store key; view URLs are signed per read and never
// persisted.
type ChecklistDocument struct {
	FileName   string    `json:"fileName"`
	FileKey    string    `json:"fileUrl"`
	UploadedBy Party     `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// CanUpload reports whether party may attach a document to this item.
func (i *ChecklistItem) CanUpload(party Party) bool {
	if !party.IsActor() {
		return false
	}

	return i.RequiredFrom == PartyBoth || i.RequiredFrom == party
}

// AllVerified reports whether every item in the checklist is verified. An
// empty checklist counts as not verified since seeding always produces items.
func AllVerified(items []*ChecklistItem) bool {
	if len(items) == 0 {
		return false
	}

	for _, item := range items {
		if !item.Verified {
			return false
		}
	}

	return true
}
