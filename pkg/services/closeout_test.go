package services_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/persistence/file"
	"github.com/diligince/closeout/pkg/render"
	"github.com/diligince/closeout/pkg/services"
	"github.com/diligince/closeout/pkg/storage"
)

const testTemplate = `{"items": [
	{"title": "Completion Report", "description": "Final delivery report", "requiredFrom": "vendor"},
	{"title": "Quality Sign-off", "description": "Buyer quality confirmation", "requiredFrom": "industry"},
	{"title": "No-dues Declaration", "description": "Joint declaration", "requiredFrom": "both"}
]}`

func setupCloseout(t *testing.T) (*services.Closeout, *services.Workflows) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	store := storage.NewFilesystemStore(t.TempDir())
	signer := storage.NewSigner("test-secret", time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	template, err := services.LoadChecklistTemplate([]byte(testTemplate))
	require.NoError(t, err)

	closeout := services.NewCloseout(p, store, signer, render.NewPDFRenderer(), nil, template, logger)
	workflows := services.NewWorkflows(p, logger)

	return closeout, workflows
}

// createReadyWorkflow creates a workflow with every milestone completed and
// paid, so closeout can be initiated.
func createReadyWorkflow(t *testing.T, closeout *services.Closeout, workflows *services.Workflows, hasRetention bool) *models.Workflow {
	t.Helper()

	ctx := context.Background()

	w, err := workflows.Create(ctx, &services.CreateWorkflowRequest{
		PurchaseOrderID: "po-100",
		ProjectTitle:    "Boiler Overhaul",
		IndustryID:      "ind-1",
		VendorID:        "ven-1",
		TotalValue:      250000,
		HasRetention:    hasRetention,
		RetentionAmount: 25000,
		Milestones: []services.CreateMilestone{
			{Name: "Design", Amount: 100000},
			{Name: "Execution", Amount: 150000},
		},
	})
	require.NoError(t, err)

	for _, m := range w.Milestones {
		_, err := closeout.MarkMilestoneComplete(ctx, w.ID, m.ID, models.PartyVendor)
		require.NoError(t, err)

		_, err = closeout.MarkMilestonePaid(ctx, w.ID, m.ID, models.PartyIndustry)
		require.NoError(t, err)
	}

	return w
}

// uploadAll attaches a document to every checklist item, acting as the
// required party (vendor where either side may upload).
func uploadAll(t *testing.T, closeout *services.Closeout, workflowID string, items []*models.ChecklistItem) {
	t.Helper()

	for _, item := range items {
		party := item.RequiredFrom
		if party == models.PartyBoth {
			party = models.PartyVendor
		}

		_, err := closeout.AttachDocument(context.Background(), workflowID, item.ID, services.DocumentUpload{
			FileName: "evidence.pdf",
			Content:  strings.NewReader("document body"),
		}, party)
		require.NoError(t, err)
	}
}

func TestInitiateCloseout_SeedsChecklist(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusAwaitingCloseout, status.WorkflowStatus)
	assert.Len(t, status.Checklist, 3)
	assert.True(t, status.Gate.AllMilestonesComplete)
	assert.True(t, status.Gate.AllPaymentsPaid)
	assert.False(t, status.Gate.ReadyToClose)

	for _, item := range status.Checklist {
		assert.NotEmpty(t, item.ID)
		assert.False(t, item.Verified)
		assert.Nil(t, item.Document)
	}
}

func TestInitiateCloseout_GateNotSatisfied(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()

	w, err := workflows.Create(ctx, &services.CreateWorkflowRequest{
		PurchaseOrderID: "po-200",
		ProjectTitle:    "Conveyor Installation",
		IndustryID:      "ind-1",
		VendorID:        "ven-1",
		Milestones:      []services.CreateMilestone{{Name: "Install", Amount: 50000}},
	})
	require.NoError(t, err)

	_, err = closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.ErrorIs(t, err, services.ErrGateNotSatisfied)
	assert.Contains(t, err.Error(), "milestones")
	assert.Contains(t, err.Error(), "payments")

	// State unchanged: still active, no checklist seeded.
	status, err := closeout.Status(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, status.WorkflowStatus)
	assert.Empty(t, status.Checklist)
}

func TestInitiateCloseout_SecondCallFails(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	first, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	_, err = closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.ErrorIs(t, err, services.ErrInvalidTransition)

	// Seeding stays exactly-once: no duplicated items.
	status, err := closeout.Status(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, status.Checklist, len(first.Checklist))
}

func TestCloseout_FullHappyPath(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	uploadAll(t, closeout, w.ID, status.Checklist)

	for i, item := range status.Checklist {
		updated, allVerified, err := closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
		require.NoError(t, err)
		assert.True(t, updated.Verified)
		assert.NotNil(t, updated.VerifiedAt)
		assert.Equal(t, i == len(status.Checklist)-1, allVerified)
	}

	cert, err := closeout.IssueCertificate(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, cert.Issued)
	assert.True(t, strings.HasPrefix(cert.CertificateNo, "CC-"))
	assert.NotNil(t, cert.IssuedAt)
	assert.NotEmpty(t, cert.FileKey)

	result, err := closeout.Close(ctx, w.ID, "all deliverables accepted")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusClosed, result.Status)
	assert.Equal(t, cert.CertificateNo, result.CertificateNo)

	final, err := workflows.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusClosed, final.Status)
	assert.Equal(t, "all deliverables accepted", final.ClosureNotes)
	require.NotNil(t, final.ClosedAt)
}

func TestClose_RetentionPendingBlocks(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, true)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	uploadAll(t, closeout, w.ID, status.Checklist)

	for _, item := range status.Checklist {
		_, _, err := closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
		require.NoError(t, err)
	}

	_, err = closeout.IssueCertificate(ctx, w.ID)
	require.NoError(t, err)

	_, err = closeout.Close(ctx, w.ID, "")
	require.ErrorIs(t, err, services.ErrGateNotSatisfied)
	assert.Contains(t, err.Error(), "retention")

	// Workflow stays open until the retention is released.
	current, err := closeout.Status(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusAwaitingCloseout, current.WorkflowStatus)

	released, err := closeout.ReleaseRetention(ctx, w.ID, "final invoice settled")
	require.NoError(t, err)
	assert.Equal(t, models.RetentionStatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)
	assert.Equal(t, "final invoice settled", released.Notes)

	result, err := closeout.Close(ctx, w.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusClosed, result.Status)
}

func TestPartyRules(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	var vendorItem *models.ChecklistItem

	for _, item := range status.Checklist {
		if item.RequiredFrom == models.PartyVendor {
			vendorItem = item

			break
		}
	}

	require.NotNil(t, vendorItem)

	// Industry cannot upload on a vendor-required item.
	_, err = closeout.AttachDocument(ctx, w.ID, vendorItem.ID, services.DocumentUpload{
		FileName: "report.pdf",
		Content:  strings.NewReader("body"),
	}, models.PartyIndustry)
	assert.ErrorIs(t, err, services.ErrForbidden)

	// Only the buyer verifies.
	_, err = closeout.AttachDocument(ctx, w.ID, vendorItem.ID, services.DocumentUpload{
		FileName: "report.pdf",
		Content:  strings.NewReader("body"),
	}, models.PartyVendor)
	require.NoError(t, err)

	_, _, err = closeout.VerifyItem(ctx, w.ID, vendorItem.ID, models.PartyVendor)
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestVerifyItem_MissingDocument(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	_, _, err = closeout.VerifyItem(ctx, w.ID, status.Checklist[0].ID, models.PartyIndustry)
	assert.ErrorIs(t, err, services.ErrMissingDocument)
}

func TestVerifyItem_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	item := status.Checklist[0]
	_, err = closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "report.pdf",
		Content:  strings.NewReader("body"),
	}, item.RequiredFrom)
	require.NoError(t, err)

	var wg sync.WaitGroup

	results := make([]error, 2)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, _, results[i] = closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
		}(i)
	}

	wg.Wait()

	successes := 0

	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, services.ErrItemAlreadyVerified)
		}
	}

	assert.Equal(t, 1, successes, "exactly one concurrent verify must win")
}

func TestIssueCertificate_Idempotent(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	// Not all items verified yet.
	_, err = closeout.IssueCertificate(ctx, w.ID)
	require.ErrorIs(t, err, services.ErrGateNotSatisfied)

	uploadAll(t, closeout, w.ID, status.Checklist)

	for _, item := range status.Checklist {
		_, _, err := closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
		require.NoError(t, err)
	}

	first, err := closeout.IssueCertificate(ctx, w.ID)
	require.NoError(t, err)

	second, err := closeout.IssueCertificate(ctx, w.ID)
	require.NoError(t, err)

	assert.Equal(t, first.CertificateNo, second.CertificateNo)
	assert.Equal(t, first.FileKey, second.FileKey)
}

func TestAttachDocument_Reupload(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	item := status.Checklist[0]
	party := item.RequiredFrom

	first, err := closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "draft.pdf",
		Content:  strings.NewReader("v1"),
	}, party)
	require.NoError(t, err)
	assert.Equal(t, "draft.pdf", first.Document.FileName)

	// Re-upload replaces the prior document while unverified.
	second, err := closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "final.pdf",
		Content:  strings.NewReader("v2"),
	}, party)
	require.NoError(t, err)
	assert.Equal(t, "final.pdf", second.Document.FileName)

	_, _, err = closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
	require.NoError(t, err)

	_, err = closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "late.pdf",
		Content:  strings.NewReader("v3"),
	}, party)
	assert.ErrorIs(t, err, services.ErrItemAlreadyVerified)
}

func TestAttachDocument_ReplacementDeletesOldBlob(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	store := storage.NewFilesystemStore(t.TempDir())
	signer := storage.NewSigner("test-secret", time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	template, err := services.LoadChecklistTemplate([]byte(testTemplate))
	require.NoError(t, err)

	closeout := services.NewCloseout(p, store, signer, render.NewPDFRenderer(), nil, template, logger)
	workflows := services.NewWorkflows(p, logger)

	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	item := status.Checklist[0]
	party := item.RequiredFrom

	first, err := closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "draft.pdf",
		Content:  strings.NewReader("v1"),
	}, party)
	require.NoError(t, err)

	oldKey := first.Document.FileKey

	second, err := closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "final.pdf",
		Content:  strings.NewReader("v2"),
	}, party)
	require.NoError(t, err)
	require.NotEqual(t, oldKey, second.Document.FileKey)

	// The replaced blob is gone; the current one still serves.
	_, err = store.Get(ctx, oldKey)
	assert.Error(t, err)

	reader, err := store.Get(ctx, second.Document.FileKey)
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "v2", string(body))

	// A same-name re-upload overwrites in place and deletes nothing.
	third, err := closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "final.pdf",
		Content:  strings.NewReader("v3"),
	}, party)
	require.NoError(t, err)
	assert.Equal(t, second.Document.FileKey, third.Document.FileKey)

	reader, err = store.Get(ctx, third.Document.FileKey)
	require.NoError(t, err)

	body, err = io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "v3", string(body))
}

func TestReleaseRetention_Rules(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()

	// No retention on the workflow.
	noRetention := createReadyWorkflow(t, closeout, workflows, false)
	_, err := closeout.InitiateCloseout(ctx, noRetention.ID, models.PartyIndustry)
	require.NoError(t, err)

	_, err = closeout.ReleaseRetention(ctx, noRetention.ID, "")
	assert.ErrorIs(t, err, services.ErrNoRetention)

	// Release before closeout starts is an invalid transition.
	withRetention := createReadyWorkflow(t, closeout, workflows, true)
	_, err = closeout.ReleaseRetention(ctx, withRetention.ID, "")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = closeout.InitiateCloseout(ctx, withRetention.ID, models.PartyIndustry)
	require.NoError(t, err)

	_, err = closeout.ReleaseRetention(ctx, withRetention.ID, "settled")
	require.NoError(t, err)

	// pending -> released happens exactly once.
	_, err = closeout.ReleaseRetention(ctx, withRetention.ID, "again")
	assert.ErrorIs(t, err, services.ErrRetentionAlreadyReleased)
}

func TestDocumentViewURL(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	item := status.Checklist[0]

	_, err = closeout.DocumentViewURL(ctx, w.ID, item.ID)
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)

	_, err = closeout.AttachDocument(ctx, w.ID, item.ID, services.DocumentUpload{
		FileName: "report.pdf",
		Content:  strings.NewReader("document body"),
	}, item.RequiredFrom)
	require.NoError(t, err)

	url, err := closeout.DocumentViewURL(ctx, w.ID, item.ID)
	require.NoError(t, err)
	assert.Contains(t, url, "sig=")
	assert.Contains(t, url, "exp=")
}

func TestCertificateViewURL_NullUntilIssued(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()
	w := createReadyWorkflow(t, closeout, workflows, false)

	status, err := closeout.InitiateCloseout(ctx, w.ID, models.PartyIndustry)
	require.NoError(t, err)

	url, err := closeout.CertificateViewURL(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, url)

	uploadAll(t, closeout, w.ID, status.Checklist)

	for _, item := range status.Checklist {
		_, _, err := closeout.VerifyItem(ctx, w.ID, item.ID, models.PartyIndustry)
		require.NoError(t, err)
	}

	_, err = closeout.IssueCertificate(ctx, w.ID)
	require.NoError(t, err)

	url, err = closeout.CertificateViewURL(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, url)
	assert.Contains(t, *url, "sig=")
}

func TestCloseout_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	closeout, _ := setupCloseout(t)
	ctx := context.Background()

	_, err := closeout.Status(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = closeout.InitiateCloseout(ctx, "missing", models.PartyIndustry)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = closeout.IssueCertificate(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestMilestoneRules(t *testing.T) {
	t.Parallel()

	closeout, workflows := setupCloseout(t)
	ctx := context.Background()

	w, err := workflows.Create(ctx, &services.CreateWorkflowRequest{
		PurchaseOrderID: "po-300",
		ProjectTitle:    "Substation Upgrade",
		IndustryID:      "ind-1",
		VendorID:        "ven-1",
		Milestones:      []services.CreateMilestone{{Name: "Commissioning", Amount: 80000}},
	})
	require.NoError(t, err)

	mID := w.Milestones[0].ID

	// Only the vendor marks completion, only the buyer records payment.
	_, err = closeout.MarkMilestoneComplete(ctx, w.ID, mID, models.PartyIndustry)
	assert.ErrorIs(t, err, services.ErrForbidden)

	// Payment requires completion first.
	_, err = closeout.MarkMilestonePaid(ctx, w.ID, mID, models.PartyIndustry)
	assert.ErrorIs(t, err, services.ErrMilestoneNotCompleted)

	m, err := closeout.MarkMilestoneComplete(ctx, w.ID, mID, models.PartyVendor)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusCompleted, m.Status)

	_, err = closeout.MarkMilestoneComplete(ctx, w.ID, mID, models.PartyVendor)
	assert.ErrorIs(t, err, services.ErrMilestoneAlreadyComplete)

	_, err = closeout.MarkMilestonePaid(ctx, w.ID, mID, models.PartyVendor)
	assert.ErrorIs(t, err, services.ErrForbidden)

	m, err = closeout.MarkMilestonePaid(ctx, w.ID, mID, models.PartyIndustry)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, m.PaymentStatus)

	_, err = closeout.MarkMilestonePaid(ctx, w.ID, mID, models.PartyIndustry)
	assert.ErrorIs(t, err, services.ErrMilestoneAlreadyPaid)

	_, err = closeout.MarkMilestoneComplete(ctx, w.ID, "missing", models.PartyVendor)
	assert.ErrorIs(t, err, services.ErrMilestoneNotFound)
}
