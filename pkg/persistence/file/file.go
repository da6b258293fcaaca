// Package file provides a file-based persistence implementation used by
// tests and local development. Each workflow's consistency unit (workflow,
// checklist, certificate, retention) is stored as a single JSON document so
// reads always see a consistent snapshot.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	store *store
}

// NewPersistence creates a new file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{store: &store{root: cleanRoot}}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &WorkflowRepository{store: fp.store}
}

func (fp *Persistence) ChecklistRepository() persistence.ChecklistRepository {
	return &ChecklistRepository{store: fp.store}
}

func (fp *Persistence) CertificateRepository() persistence.CertificateRepository {
	return &CertificateRepository{store: fp.store}
}

func (fp *Persistence) RetentionRepository() persistence.RetentionRepository {
	return &RetentionRepository{store: fp.store}
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is nothing
// to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// record is the on-disk shape of one workflow's consistency unit.
type record struct {
	Workflow    *models.Workflow         `json:"workflow"`
	Items       []*models.ChecklistItem  `json:"items"`
	Certificate *models.Certificate      `json:"certificate,omitempty"`
	Retention   *models.RetentionPayment `json:"retention,omitempty"`
}

// store serializes access to the record files. A single lock is enough here:
// file persistence backs tests, not production traffic.
type store struct {
	mu   sync.RWMutex
	root string
}

func (s *store) path(workflowID string) string {
	return filepath.Join(s.root, "workflows", workflowID+".json")
}

// load reads the record for a workflow, returning nil when it does not exist.
// Callers must hold the lock.
func (s *store) load(workflowID string) (*record, error) {
	data, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode workflow file: %w", err)
	}

	return &rec, nil
}

// save writes the record for a workflow. Callers must hold the lock.
func (s *store) save(workflowID string, rec *record) error {
	dir := filepath.Join(s.root, "workflows")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow record: %w", err)
	}

	if err := os.WriteFile(s.path(workflowID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}

// workflowIDs lists all stored workflow IDs. Callers must hold the lock.
func (s *store) workflowIDs() ([]string, error) {
	dir := filepath.Join(s.root, "workflows")
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, f := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}
