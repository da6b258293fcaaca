package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/diligince/closeout/pkg/events"
	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// DocumentUpload is an incoming checklist document.
type DocumentUpload struct {
	FileName string
	Content  io.Reader
}

// AttachDocument stores the uploaded file and attaches it to the checklist
// item. Re-upload replaces the previous document while the item is
// unverified. The storage write happens before any state change, so a failed
// write leaves the item untouched.
func (c *Closeout) AttachDocument(ctx context.Context, workflowID, itemID string, upload DocumentUpload, uploadedBy models.Party) (*models.ChecklistItem, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusAwaitingCloseout {
		return nil, ErrInvalidTransition
	}

	item, err := c.loadItem(ctx, workflowID, itemID)
	if err != nil {
		return nil, err
	}

	if !item.CanUpload(uploadedBy) {
		return nil, ErrForbidden
	}

	if item.Verified {
		return nil, ErrItemAlreadyVerified
	}

	fileName := path.Base(upload.FileName)
	if fileName == "." || fileName == "/" || fileName == "" {
		return nil, fmt.Errorf("invalid file name %q", upload.FileName)
	}

	key := fmt.Sprintf("workflows/%s/items/%s/%s", workflowID, itemID, fileName)

	if err := c.store.Put(ctx, key, upload.Content); err != nil {
		return nil, NewStorageError("upload document", err)
	}

	previous := item.Document

	item.Document = &models.ChecklistDocument{
		FileName:   fileName,
		FileKey:    key,
		UploadedBy: uploadedBy,
		UploadedAt: time.Now().UTC(),
	}

	if err := c.persistence.ChecklistRepository().SaveItem(ctx, item); err != nil {
		return nil, err
	}

	// A replacement under a different file name leaves the old blob behind.
	// The item already points at the new document, so cleanup failure only
	// costs storage.
	if previous != nil && previous.FileKey != key {
		if err := c.store.Delete(ctx, previous.FileKey); err != nil {
			c.logger.WarnContext(ctx, "Failed to delete replaced document",
				"workflow_id", workflowID, "item_id", itemID, "file_key", previous.FileKey, "error", err)
		}
	}

	c.logger.InfoContext(ctx, "Document attached",
		"workflow_id", workflowID, "item_id", itemID, "uploaded_by", uploadedBy)

	c.publish(ctx, workflowID, events.DocumentAttached{
		BaseEvent:  newBaseEvent(events.DocumentAttachedEvent, workflowID),
		ItemID:     itemID,
		FileName:   fileName,
		UploadedBy: uploadedBy,
	})

	return item, nil
}

// VerifyItem marks a checklist item verified. Only the industry buyer
// verifies, and only items carrying a document. Returns the updated item and
// whether the whole checklist is now verified.
func (c *Closeout) VerifyItem(ctx context.Context, workflowID, itemID string, verifyingParty models.Party) (*models.ChecklistItem, bool, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, false, err
	}

	if workflow.Status != models.WorkflowStatusAwaitingCloseout {
		return nil, false, ErrInvalidTransition
	}

	item, err := c.loadItem(ctx, workflowID, itemID)
	if err != nil {
		return nil, false, err
	}

	if verifyingParty != models.PartyIndustry {
		return nil, false, ErrForbidden
	}

	if item.Document == nil {
		return nil, false, ErrMissingDocument
	}

	if item.Verified {
		return nil, false, ErrItemAlreadyVerified
	}

	now := time.Now().UTC()
	item.Verified = true
	item.VerifiedAt = &now

	if err := c.persistence.ChecklistRepository().SaveItem(ctx, item); err != nil {
		return nil, false, err
	}

	items, err := c.persistence.ChecklistRepository().ItemsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, false, err
	}

	allVerified := models.AllVerified(items)

	c.logger.InfoContext(ctx, "Checklist item verified",
		"workflow_id", workflowID, "item_id", itemID, "all_items_verified", allVerified)

	c.publish(ctx, workflowID, events.ItemVerified{
		BaseEvent:        newBaseEvent(events.ItemVerifiedEvent, workflowID),
		ItemID:           itemID,
		AllItemsVerified: allVerified,
	})

	return item, allVerified, nil
}

// DocumentViewURL issues a time-limited signed link to a checklist document.
func (c *Closeout) DocumentViewURL(ctx context.Context, workflowID, itemID string) (string, error) {
	if _, err := c.loadWorkflow(ctx, workflowID); err != nil {
		return "", err
	}

	item, err := c.loadItem(ctx, workflowID, itemID)
	if err != nil {
		return "", err
	}

	if item.Document == nil {
		return "", ErrDocumentNotFound
	}

	return documentViewPath + "?" + c.signer.SignedQuery(item.Document.FileKey, time.Now()), nil
}

// OpenDocument verifies a signed view link and streams the stored file.
func (c *Closeout) OpenDocument(ctx context.Context, key, exp, sig string) (io.ReadCloser, error) {
	if err := c.signer.Verify(key, exp, sig, time.Now()); err != nil {
		return nil, err
	}

	reader, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, NewStorageError("read document", err)
	}

	return reader, nil
}

func (c *Closeout) loadItem(ctx context.Context, workflowID, itemID string) (*models.ChecklistItem, error) {
	item, err := c.persistence.ChecklistRepository().GetItem(ctx, workflowID, itemID)
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, &persistence.ChecklistItemError{
			Op:         "load",
			WorkflowID: workflowID,
			ItemID:     itemID,
			Err:        persistence.ErrChecklistItemNotFound,
		}
	}

	return item, nil
}
