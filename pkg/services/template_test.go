package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince/closeout/pkg/models"
	"github.com/diligince/closeout/pkg/services"
)

func TestDefaultChecklistTemplate(t *testing.T) {
	t.Parallel()

	template := services.DefaultChecklistTemplate()
	assert.Equal(t, 5, template.Len())

	items := template.Items("wf-1")
	require.Len(t, items, 5)

	for i, item := range items {
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "wf-1", item.WorkflowID)
		assert.Equal(t, i, item.Position)
		assert.False(t, item.Verified)
	}

	// Item IDs are unique per materialization.
	other := template.Items("wf-1")
	assert.NotEqual(t, items[0].ID, other[0].ID)
}

func TestLoadChecklistTemplate(t *testing.T) {
	t.Parallel()

	template, err := services.LoadChecklistTemplate([]byte(`{"items": [
		{"title": "Handover Protocol", "requiredFrom": "vendor"},
		{"title": "Acceptance Note", "description": "Signed acceptance", "requiredFrom": "industry"}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, template.Len())

	items := template.Items("wf-9")
	assert.Equal(t, "Handover Protocol", items[0].Title)
	assert.Equal(t, models.PartyVendor, items[0].RequiredFrom)
	assert.Equal(t, models.PartyIndustry, items[1].RequiredFrom)
}

func TestLoadChecklistTemplate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"empty items", `{"items": []}`},
		{"missing items", `{}`},
		{"bad party", `{"items": [{"title": "Report", "requiredFrom": "auditor"}]}`},
		{"missing title", `{"items": [{"requiredFrom": "vendor"}]}`},
		{"unknown field", `{"items": [{"title": "Report", "requiredFrom": "vendor", "weight": 2}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := services.LoadChecklistTemplate([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
