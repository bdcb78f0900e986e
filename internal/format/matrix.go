// Package format holds the static mapping of integration type to the export
// formats that type accepts.
package format

import (
	"sort"

	"github.com/webitel/document-exporter/internal/model"
)

var matrix = map[model.IntegrationType][]model.Format{
	model.IntegrationSharePoint: {
		model.FormatPDF,
		model.FormatHTML,
		model.FormatMarkdown,
		model.FormatXLSX,
	},
	model.IntegrationConfluence: {
		model.FormatHTML,
		model.FormatMarkdown,
		model.FormatPDF,
	},
	model.IntegrationObjectStorage: {
		model.FormatPDF,
		model.FormatHTML,
		model.FormatMarkdown,
		model.FormatXLSX,
		model.FormatText,
		model.FormatJSON,
	},
}

// SupportedFormats returns the formats accepted by the integration type, sorted.
// Unknown types support nothing.
func SupportedFormats(t model.IntegrationType) []model.Format {
	formats := append([]model.Format(nil), matrix[t]...)
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

func Supports(t model.IntegrationType, f model.Format) bool {
	for _, candidate := range matrix[t] {
		if candidate == f {
			return true
		}
	}
	return false
}

// Types lists every integration type the matrix knows about.
func Types() []model.IntegrationType {
	types := make([]model.IntegrationType, 0, len(matrix))
	for t := range matrix {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
