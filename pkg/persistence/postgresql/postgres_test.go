package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"retention_payments", "certificates", "closeout_items", "workflow_milestones", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("closeout_test"),
			postgres.WithUsername("closeout"),
			postgres.WithPassword("closeout"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newPersistedWorkflow(t *testing.T, p *postgresql.Persistence, ctx context.Context) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		PurchaseOrderID: "po-" + uuid.NewString()[:8],
		ProjectTitle:    "Kiln Rebuild",
		IndustryID:      "ind-1",
		VendorID:        "ven-1",
		Status:          models.WorkflowStatusActive,
		HasRetention:    true,
		TotalValue:      750000,
		Currency:        "INR",
		Milestones: []*models.Milestone{
			{Name: "Teardown", Amount: 250000, Status: models.MilestoneStatusPending, PaymentStatus: models.PaymentStatusPending},
			{Name: "Rebuild", Amount: 500000, Status: models.MilestoneStatusPending, PaymentStatus: models.PaymentStatusPending},
		},
	}

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)

	return workflow
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_milestones", "closeout_items", "certificates", "retention_payments", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestWorkflowRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newPersistedWorkflow(t, p, ctx)
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	retrieved, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, workflow.ID, retrieved.ID)
	assert.Equal(t, workflow.PurchaseOrderID, retrieved.PurchaseOrderID)
	assert.Equal(t, "Kiln Rebuild", retrieved.ProjectTitle)
	assert.Equal(t, models.WorkflowStatusActive, retrieved.Status)
	assert.True(t, retrieved.HasRetention)
	assert.InDelta(t, 750000, retrieved.TotalValue, 0.001)
	require.Len(t, retrieved.Milestones, 2)
	assert.Equal(t, "Teardown", retrieved.Milestones[0].Name)
	assert.Equal(t, "Rebuild", retrieved.Milestones[1].Name)

	notFound, err := p.WorkflowRepository().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestWorkflowRepository_Update(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newPersistedWorkflow(t, p, ctx)
	initialUpdatedAt := workflow.UpdatedAt

	time.Sleep(10 * time.Millisecond)

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusClosed
	workflow.ClosureNotes = "handover complete"
	workflow.ClosedAt = &now
	workflow.Milestones[0].Status = models.MilestoneStatusCompleted
	workflow.Milestones[0].CompletedAt = &now

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, models.WorkflowStatusClosed, retrieved.Status)
	assert.Equal(t, "handover complete", retrieved.ClosureNotes)
	require.NotNil(t, retrieved.ClosedAt)
	assert.Equal(t, models.MilestoneStatusCompleted, retrieved.Milestones[0].Status)
	require.NotNil(t, retrieved.Milestones[0].CompletedAt)
	assert.True(t, retrieved.UpdatedAt.After(initialUpdatedAt))
}

func TestWorkflowRepository_List(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := newPersistedWorkflow(t, p, ctx)
	second := newPersistedWorkflow(t, p, ctx)
	require.NotEqual(t, first.ID, second.ID)

	second.Status = models.WorkflowStatusAwaitingCloseout
	require.NoError(t, p.WorkflowRepository().Save(ctx, second))

	all, err := p.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)
	assert.Len(t, all.Workflows, 2)
	assert.False(t, all.HasNextPage)

	awaiting := models.WorkflowStatusAwaitingCloseout
	filtered, err := p.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{Status: &awaiting})
	require.NoError(t, err)
	require.Len(t, filtered.Workflows, 1)
	assert.Equal(t, second.ID, filtered.Workflows[0].ID)

	byIndustry, err := p.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Party:   models.PartyIndustry,
		PartyID: "ind-1",
	})
	require.NoError(t, err)
	assert.Len(t, byIndustry.Workflows, 2)

	paged, err := p.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, paged.Workflows, 1)
	assert.True(t, paged.HasNextPage)

	_, err = p.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{SortBy: "total_value"})
	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)
}
