package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/document-exporter/internal/model"
)

func TestSupportedFormats(t *testing.T) {
	tests := []struct {
		name string
		typ  model.IntegrationType
		want []model.Format
	}{
		{"sharepoint", model.IntegrationSharePoint, []model.Format{"html", "markdown", "pdf", "xlsx"}},
		{"confluence", model.IntegrationConfluence, []model.Format{"html", "markdown", "pdf"}},
		{"object storage", model.IntegrationObjectStorage, []model.Format{"html", "json", "markdown", "pdf", "txt", "xlsx"}},
		{"unknown", model.IntegrationType("ftp"), []model.Format{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SupportedFormats(tt.typ)
			assert.ElementsMatch(t, tt.want, got)
			for _, f := range got {
				assert.True(t, Supports(tt.typ, f))
			}
		})
	}
}

func TestSupportsRejectsOutsideSet(t *testing.T) {
	assert.False(t, Supports(model.IntegrationConfluence, model.FormatXLSX))
	assert.False(t, Supports(model.IntegrationSharePoint, model.FormatJSON))
	assert.False(t, Supports("", model.FormatPDF))
}

func TestSupportedFormatsReturnsCopy(t *testing.T) {
	got := SupportedFormats(model.IntegrationConfluence)
	got[0] = "broken"
	assert.NotContains(t, SupportedFormats(model.IntegrationConfluence), model.Format("broken"))
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []model.IntegrationType{"confluence", "object-storage", "sharepoint"}, Types())
}
