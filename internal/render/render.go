// Package render converts generated documents into the byte payload of an
// export format.
package render

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
)

type renderFunc func(doc model.Document) ([]byte, error)

var renderers = map[model.Format]renderFunc{
	model.FormatPDF:      renderPDF,
	model.FormatHTML:     renderHTML,
	model.FormatMarkdown: renderMarkdown,
	model.FormatXLSX:     renderXLSX,
	model.FormatText:     renderText,
	model.FormatJSON:     renderJSON,
}

// Render produces the file that is handed to a transfer adapter.
// A document whose content cannot be decoded yields an error; callers treat it
// as a failure of that document only.
func Render(doc model.Document, format model.Format) (model.File, error) {
	fn, ok := renderers[format]
	if !ok {
		return model.File{}, errors.InvalidArgument(fmt.Sprintf("no renderer for format %q", format))
	}
	data, err := fn(doc)
	if err != nil {
		return model.File{}, errors.New(
			fmt.Sprintf("render %s as %s", doc.ID, format),
			errors.WithCause(err),
			errors.WithID("render.document.failed"),
		)
	}
	name, err := FileName(doc, format)
	if err != nil {
		return model.File{}, errors.Internal("generate file name", errors.WithCause(err))
	}
	return model.File{
		DocumentID: doc.ID,
		Name:       name,
		MimeType:   format.MimeType(),
		Data:       data,
	}, nil
}

// decodeDiagram accepts raw base64 or a data URI and returns the image bytes.
func decodeDiagram(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "data:") {
		idx := strings.Index(content, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data uri")
		}
		content = content[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decode diagram: %w", err)
	}
	return data, nil
}

// parseTable reads table content as comma separated rows, the first row being the header.
func parseTable(content string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

func renderText(doc model.Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(doc.Title)
	buf.WriteString("\n\n")
	switch doc.Type {
	case model.DocumentDiagram:
		if _, err := decodeDiagram(doc.Content); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "[diagram: %s]\n", doc.Title)
	case model.DocumentTable:
		rows, err := parseTable(doc.Content)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	default:
		buf.WriteString(doc.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
