package file

import (
	"context"
	"sort"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	store *store
}

// List returns paginated and filtered workflows with in-memory operations.
func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at":    true,
		"updated_at":    true,
		"project_title": true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, persistence.ErrInvalidSortField
	}

	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	ids, err := wr.store.workflowIDs()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		rec, err := wr.store.load(id)
		if err != nil {
			return nil, err
		}

		if rec == nil {
			continue
		}

		w := rec.Workflow

		if opts.Status != nil && w.Status != *opts.Status {
			continue
		}

		if opts.PartyID != "" {
			switch opts.Party {
			case models.PartyIndustry:
				if w.IndustryID != opts.PartyID {
					continue
				}
			case models.PartyVendor:
				if w.VendorID != opts.PartyID {
					continue
				}
			}
		}

		filtered = append(filtered, w)
	}

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	startIdx := opts.Offset
	endIdx := opts.Offset + opts.Limit

	if startIdx >= len(filtered) {
		return &persistence.WorkflowListResult{
			Workflows:  []*models.Workflow{},
			TotalCount: totalCount,
		}, nil
	}

	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.WorkflowListResult{
		Workflows:   filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.Slice(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		case "project_title":
			less = workflows[i].ProjectTitle < workflows[j].ProjectTitle
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

// GetByID returns a workflow by its ID, or nil when it does not exist.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	rec, err := wr.store.load(id)
	if err != nil || rec == nil {
		return nil, err
	}

	return rec.Workflow, nil
}

// Save stores a workflow, preserving its checklist, certificate and
// retention records.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	rec, err := wr.store.load(workflow.ID)
	if err != nil {
		return err
	}

	if rec == nil {
		rec = &record{}
	}

	rec.Workflow = workflow

	return wr.store.save(workflow.ID, rec)
}
