package render

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/webitel/document-exporter/internal/model"
)

const (
	// Rough capacity of one 12-column line at body font size.
	pdfCharsPerLine = 95
	pdfLineHeight   = 5.0
	// Height of the diagram row (A4 portrait height is ~297mm).
	pdfDiagramHeight = 220.0
)

func renderPDF(doc model.Document) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetBorder(false)
	m.SetPageMargins(15, 15, 15)

	m.Row(12, func() {
		m.Col(12, func() {
			m.Text(doc.Title, props.Text{
				Size:  16,
				Style: consts.Bold,
				Align: consts.Left,
			})
		})
	})

	switch doc.Type {
	case model.DocumentDiagram:
		img, err := decodeDiagram(doc.Content)
		if err != nil {
			return nil, err
		}
		img, err = fitImage(img)
		if err != nil {
			return nil, err
		}
		var imgErr error
		m.Row(pdfDiagramHeight, func() {
			m.Col(12, func() {
				imgErr = m.Base64Image(base64.StdEncoding.EncodeToString(img), consts.Png, props.Rect{
					Center:  true,
					Percent: 95,
				})
			})
		})
		if imgErr != nil {
			return nil, fmt.Errorf("add diagram: %w", imgErr)
		}
	case model.DocumentTable:
		rows, err := parseTable(doc.Content)
		if err != nil {
			return nil, err
		}
		m.TableList(rows[0], rows[1:], props.TableList{
			HeaderProp:  props.TableListContent{Size: 10, Style: consts.Bold},
			ContentProp: props.TableListContent{Size: 9},
			Align:       consts.Left,
			Line:        true,
		})
	default:
		for _, paragraph := range strings.Split(doc.Content, "\n") {
			lines := len(paragraph)/pdfCharsPerLine + 1
			m.Row(float64(lines)*pdfLineHeight, func() {
				m.Col(12, func() {
					m.Text(paragraph, props.Text{Size: 10, Align: consts.Left})
				})
			})
		}
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to generate output: %w", err)
	}
	return buf.Bytes(), nil
}
