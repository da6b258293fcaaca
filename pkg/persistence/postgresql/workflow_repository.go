package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , purchase_order_id
  , project_title
  , industry_id
  , vendor_id
  , status
  , has_retention
  , total_value
  , currency
  , closure_notes
  , closed_at
  , created_at
  , updated_at
`

// List returns paginated and filtered workflows.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}

	// Sort fields map onto columns through an allowlist, never user input.
	sortColumns := map[string]string{
		"created_at":    "created_at",
		"updated_at":    "updated_at",
		"project_title": "project_title",
	}

	sortColumn, ok := sortColumns[opts.SortBy]
	if !ok {
		return nil, persistence.ErrInvalidSortField
	}

	where := "WHERE 1=1"
	args := []any{}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.PartyID != "" {
		switch opts.Party {
		case models.PartyIndustry:
			args = append(args, opts.PartyID)
			where += fmt.Sprintf(" AND industry_id = $%d", len(args))
		case models.PartyVendor:
			args = append(args, opts.PartyID)
			where += fmt.Sprintf(" AND vendor_id = $%d", len(args))
		}
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM workflows %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		workflowColumns, where, sortColumn, opts.SortOrder, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		if err := r.loadMilestones(ctx, workflow); err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID returns a workflow by its ID, or nil when it does not exist.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)

	workflow, err := r.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadMilestones(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts a workflow and replaces its milestone facts.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, purchase_order_id, project_title, industry_id, vendor_id,
			status, has_retention, total_value, currency, closure_notes, closed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			closure_notes = EXCLUDED.closure_notes,
			closed_at = EXCLUDED.closed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.PurchaseOrderID,
		workflow.ProjectTitle,
		workflow.IndustryID,
		workflow.VendorID,
		workflow.Status,
		workflow.HasRetention,
		workflow.TotalValue,
		workflow.Currency,
		nullableString(workflow.ClosureNotes),
		workflow.ClosedAt,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_milestones WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing milestones: %w", err)
	}

	milestoneQuery := `
		INSERT INTO workflow_milestones (workflow_id, id, name, amount, status, payment_status,
			due_date, completed_at, paid_at, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, m := range workflow.Milestones {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}

		_, err = tx.ExecContext(ctx, milestoneQuery,
			workflow.ID, m.ID, m.Name, m.Amount, m.Status, m.PaymentStatus,
			m.DueDate, m.CompletedAt, m.PaidAt, i,
		)
		if err != nil {
			return fmt.Errorf("failed to save milestone %s: %w", m.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow save: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflow(row interface{ Scan(dest ...any) error }) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		closureNotes sql.NullString
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.PurchaseOrderID,
		&workflow.ProjectTitle,
		&workflow.IndustryID,
		&workflow.VendorID,
		&workflow.Status,
		&workflow.HasRetention,
		&workflow.TotalValue,
		&workflow.Currency,
		&closureNotes,
		&workflow.ClosedAt,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.ClosureNotes = closureNotes.String

	return &workflow, nil
}

func (r *WorkflowRepository) loadMilestones(ctx context.Context, workflow *models.Workflow) error {
	query := `
		SELECT id, name, amount, status, payment_status, due_date, completed_at, paid_at
		FROM workflow_milestones
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query milestones: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflow.Milestones = make([]*models.Milestone, 0)

	for rows.Next() {
		var m models.Milestone

		err := rows.Scan(&m.ID, &m.Name, &m.Amount, &m.Status, &m.PaymentStatus, &m.DueDate, &m.CompletedAt, &m.PaidAt)
		if err != nil {
			return fmt.Errorf("failed to scan milestone: %w", err)
		}

		workflow.Milestones = append(workflow.Milestones, &m)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating milestones: %w", err)
	}

	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
