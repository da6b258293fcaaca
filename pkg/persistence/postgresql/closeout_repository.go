package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// ChecklistRepository handles closeout checklist database operations.
type ChecklistRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChecklistRepository creates a new checklist repository.
func NewChecklistRepository(db *sql.DB, logger *slog.Logger) *ChecklistRepository {
	return &ChecklistRepository{db: db, logger: logger}
}

const itemColumns = `
	workflow_id
  , id
  , title
  , description
  , required_from
  , doc_file_name
  , doc_file_key
  , doc_uploaded_by
  , doc_uploaded_at
  , verified
  , verified_at
  , position
`

// SeedItems atomically creates the full checklist for a workflow. Seeding is
// exactly-once: any existing item fails the whole batch.
func (r *ChecklistRepository) SeedItems(ctx context.Context, workflowID string, items []*models.ChecklistItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int

	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM closeout_items WHERE workflow_id = $1", workflowID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check existing checklist: %w", err)
	}

	if count > 0 {
		err = persistence.NewWorkflowError("SeedItems", workflowID, persistence.ErrChecklistAlreadySeeded)

		return err
	}

	insertQuery := `
		INSERT INTO closeout_items (workflow_id, id, title, description, required_from, verified, position)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`

	for _, item := range items {
		_, err = tx.ExecContext(ctx, insertQuery,
			workflowID, item.ID, item.Title, item.Description, item.RequiredFrom, item.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert checklist item %s: %w", item.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit checklist seed: %w", err)
	}

	return nil
}

// ItemsByWorkflow returns the workflow's checklist in seeded order.
func (r *ChecklistRepository) ItemsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChecklistItem, error) {
	query := "SELECT " + itemColumns + " FROM closeout_items WHERE workflow_id = $1 ORDER BY position"

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist items: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	items := make([]*models.ChecklistItem, 0)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist items: %w", err)
	}

	return items, nil
}

// GetItem returns one checklist item, or nil when it does not exist.
func (r *ChecklistRepository) GetItem(ctx context.Context, workflowID, itemID string) (*models.ChecklistItem, error) {
	query := "SELECT " + itemColumns + " FROM closeout_items WHERE workflow_id = $1 AND id = $2"

	item, err := scanItem(r.db.QueryRowContext(ctx, query, workflowID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan checklist item: %w", err)
	}

	return item, nil
}

// SaveItem stores an updated checklist item.
func (r *ChecklistRepository) SaveItem(ctx context.Context, item *models.ChecklistItem) error {
	query := `
		UPDATE closeout_items SET
			doc_file_name = $3,
			doc_file_key = $4,
			doc_uploaded_by = $5,
			doc_uploaded_at = $6,
			verified = $7,
			verified_at = $8
		WHERE workflow_id = $1 AND id = $2
	`

	var (
		fileName, fileKey, uploadedBy sql.NullString
		uploadedAt                    sql.NullTime
	)

	if item.Document != nil {
		fileName = sql.NullString{String: item.Document.FileName, Valid: true}
		fileKey = sql.NullString{String: item.Document.FileKey, Valid: true}
		uploadedBy = sql.NullString{String: string(item.Document.UploadedBy), Valid: true}
		uploadedAt = sql.NullTime{Time: item.Document.UploadedAt, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		item.WorkflowID, item.ID, fileName, fileKey, uploadedBy, uploadedAt, item.Verified, item.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return &persistence.ChecklistItemError{
			Op:         "SaveItem",
			WorkflowID: item.WorkflowID,
			ItemID:     item.ID,
			Err:        persistence.ErrChecklistItemNotFound,
		}
	}

	return nil
}

func scanItem(row interface{ Scan(dest ...any) error }) (*models.ChecklistItem, error) {
	var (
		item                          models.ChecklistItem
		description                   string
		fileName, fileKey, uploadedBy sql.NullString
		uploadedAt                    sql.NullTime
	)

	err := row.Scan(
		&item.WorkflowID,
		&item.ID,
		&item.Title,
		&description,
		&item.RequiredFrom,
		&fileName,
		&fileKey,
		&uploadedBy,
		&uploadedAt,
		&item.Verified,
		&item.VerifiedAt,
		&item.Position,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description

	if fileKey.Valid {
		item.Document = &models.ChecklistDocument{
			FileName:   fileName.String,
			FileKey:    fileKey.String,
			UploadedBy: models.Party(uploadedBy.String),
			UploadedAt: uploadedAt.Time,
		}
	}

	return &item, nil
}

// CertificateRepository handles certificate database operations.
type CertificateRepository struct {
	db *sql.DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// GetByWorkflow returns the workflow's certificate, or nil when none exists.
func (r *CertificateRepository) GetByWorkflow(ctx context.Context, workflowID string) (*models.Certificate, error) {
	query := "SELECT workflow_id, certificate_no, issued_at, file_key FROM certificates WHERE workflow_id = $1"

	var (
		cert    models.Certificate
		fileKey sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(&cert.WorkflowID, &cert.CertificateNo, &cert.IssuedAt, &fileKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	cert.Issued = true
	cert.FileKey = fileKey.String

	return &cert, nil
}

// Save inserts the workflow's certificate record. Certificates are immutable:
// a conflicting insert fails rather than updating.
func (r *CertificateRepository) Save(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (workflow_id, certificate_no, issued_at, file_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workflow_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, cert.WorkflowID, cert.CertificateNo, cert.IssuedAt, nullableString(cert.FileKey))
	if err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Save", cert.WorkflowID, persistence.ErrCertificateAlreadyExists)
	}

	return nil
}

// RetentionRepository handles retention payment database operations.
type RetentionRepository struct {
	db *sql.DB
}

// NewRetentionRepository creates a new retention repository.
func NewRetentionRepository(db *sql.DB) *RetentionRepository {
	return &RetentionRepository{db: db}
}

// GetByWorkflow returns the workflow's retention payment, or nil when the
// workflow carries no retention.
func (r *RetentionRepository) GetByWorkflow(ctx context.Context, workflowID string) (*models.RetentionPayment, error) {
	query := "SELECT workflow_id, amount, status, released_at, notes FROM retention_payments WHERE workflow_id = $1"

	var (
		payment models.RetentionPayment
		notes   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(&payment.WorkflowID, &payment.Amount, &payment.Status, &payment.ReleasedAt, &notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan retention payment: %w", err)
	}

	payment.Notes = notes.String

	return &payment, nil
}

// Save upserts the workflow's retention payment record.
func (r *RetentionRepository) Save(ctx context.Context, payment *models.RetentionPayment) error {
	query := `
		INSERT INTO retention_payments (workflow_id, amount, status, released_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id) DO UPDATE SET
			status = EXCLUDED.status,
			released_at = EXCLUDED.released_at,
			notes = EXCLUDED.notes
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.WorkflowID, payment.Amount, payment.Status, payment.ReleasedAt, nullableString(payment.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to save retention payment: %w", err)
	}

	return nil
}
