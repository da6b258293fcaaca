package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diligince/closeout/pkg/events"
	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// IssueCertificate issues the completion certificate once every checklist
// item is verified. Issuance is idempotent: a repeat call after a successful
// issue returns the existing certificate so client retries stay safe. The PDF
// is rendered and stored before the record is written; a failed render or
// store leaves the workflow without a certificate.
func (c *Closeout) IssueCertificate(ctx context.Context, workflowID string) (*models.Certificate, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusAwaitingCloseout {
		return nil, ErrInvalidTransition
	}

	existing, err := c.persistence.CertificateRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	items, err := c.persistence.ChecklistRepository().ItemsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !models.AllVerified(items) {
		return nil, NewGateError("all checklist items must be verified")
	}

	now := time.Now().UTC()
	certificateNo := newCertificateNo()

	pdf, err := c.renderer.Render(ctx, workflow, certificateNo, now)
	if err != nil {
		return nil, NewStorageError("render certificate", err)
	}

	fileKey := fmt.Sprintf("workflows/%s/certificate/%s.pdf", workflowID, certificateNo)

	if err := c.store.Put(ctx, fileKey, bytes.NewReader(pdf)); err != nil {
		return nil, NewStorageError("store certificate", err)
	}

	cert := &models.Certificate{
		WorkflowID:    workflowID,
		Issued:        true,
		IssuedAt:      &now,
		CertificateNo: certificateNo,
		FileKey:       fileKey,
	}

	if err := c.persistence.CertificateRepository().Save(ctx, cert); err != nil {
		if errors.Is(err, persistence.ErrCertificateAlreadyExists) {
			return c.persistence.CertificateRepository().GetByWorkflow(ctx, workflowID)
		}

		return nil, err
	}

	c.logger.InfoContext(ctx, "Certificate issued",
		"workflow_id", workflowID, "certificate_no", certificateNo)

	c.publish(ctx, workflowID, events.CertificateIssued{
		BaseEvent:     newBaseEvent(events.CertificateIssuedEvent, workflowID),
		CertificateNo: certificateNo,
	})

	return cert, nil
}

// CertificateViewURL issues a time-limited signed link to the certificate
// PDF, or nil when no certificate has been issued.
func (c *Closeout) CertificateViewURL(ctx context.Context, workflowID string) (*string, error) {
	if _, err := c.loadWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	cert, err := c.persistence.CertificateRepository().GetByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if cert == nil || cert.FileKey == "" {
		return nil, nil
	}

	url := documentViewPath + "?" + c.signer.SignedQuery(cert.FileKey, time.Now())

	return &url, nil
}

// newCertificateNo generates a globally unique certificate number.
func newCertificateNo() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")

	return "CC-" + strings.ToUpper(raw)
}
