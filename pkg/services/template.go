package services

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/diligince/closeout/pkg/models"
)

// checklistTemplateSchema validates checklist template documents before they
// are accepted as the seed set.
const checklistTemplateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "requiredFrom"],
        "properties": {
          "title": {"type": "string", "minLength": 3},
          "description": {"type": "string"},
          "requiredFrom": {"type": "string", "enum": ["industry", "vendor", "both"]}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// TemplateEntry is one document requirement in a checklist template.
type TemplateEntry struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	RequiredFrom models.Party `json:"requiredFrom"`
}

// ChecklistTemplate is the fixed set of document requirements seeded when
// closeout is initiated.
type ChecklistTemplate struct {
	entries []TemplateEntry
}

// DefaultChecklistTemplate returns the built-in closeout document set.
func DefaultChecklistTemplate() *ChecklistTemplate {
	return &ChecklistTemplate{entries: []TemplateEntry{
		{
			Title:        "Project Completion Report",
			Description:  "Final report covering delivered scope and outcomes",
			RequiredFrom: models.PartyVendor,
		},
		{
			Title:        "Quality Sign-off",
			Description:  "Buyer-side confirmation that deliverables meet the agreed quality criteria",
			RequiredFrom: models.PartyIndustry,
		},
		{
			Title:        "As-built Documentation",
			Description:  "Final drawings and technical documentation reflecting the delivered state",
			RequiredFrom: models.PartyVendor,
		},
		{
			Title:        "Warranty Documents",
			Description:  "Warranty certificates and support terms for delivered equipment",
			RequiredFrom: models.PartyVendor,
		},
		{
			Title:        "No-dues Declaration",
			Description:  "Joint declaration that no payments or claims remain outstanding",
			RequiredFrom: models.PartyBoth,
		},
	}}
}

// LoadChecklistTemplate parses and validates a checklist template document.
func LoadChecklistTemplate(data []byte) (*ChecklistTemplate, error) {
	schemaLoader := gojsonschema.NewStringLoader(checklistTemplateSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate checklist template: %w", err)
	}

	if !result.Valid() {
		msg := "checklist template is invalid:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf(" %s;", desc)
		}

		return nil, fmt.Errorf("%s", msg)
	}

	var doc struct {
		Items []TemplateEntry `json:"items"`
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse checklist template: %w", err)
	}

	return &ChecklistTemplate{entries: doc.Items}, nil
}

// LoadChecklistTemplateFile loads a template from disk, falling back to the
// built-in default when path is empty.
func LoadChecklistTemplateFile(path string) (*ChecklistTemplate, error) {
	if path == "" {
		return DefaultChecklistTemplate(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checklist template %s: %w", path, err)
	}

	return LoadChecklistTemplate(data)
}

// Len returns the number of entries in the template.
func (t *ChecklistTemplate) Len() int {
	return len(t.entries)
}

// Items materializes the template into checklist items for one workflow.
func (t *ChecklistTemplate) Items(workflowID string) []*models.ChecklistItem {
	items := make([]*models.ChecklistItem, 0, len(t.entries))

	for position, entry := range t.entries {
		items = append(items, &models.ChecklistItem{
			ID:           uuid.Must(uuid.NewV7()).String(),
			WorkflowID:   workflowID,
			Title:        entry.Title,
			Description:  entry.Description,
			RequiredFrom: entry.RequiredFrom,
			Position:     position,
		})
	}

	return items
}
