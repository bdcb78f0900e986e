package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/webitel/document-exporter/internal/model"
)

// markdownBody is the document body without the title heading.
func markdownBody(doc model.Document) (string, error) {
	switch doc.Type {
	case model.DocumentDiagram:
		img, err := decodeDiagram(doc.Content)
		if err != nil {
			return "", err
		}
		img, err = fitImage(img)
		if err != nil {
			return "", err
		}
		return "![" + doc.Title + "](data:image/png;base64," + base64.StdEncoding.EncodeToString(img) + ")\n", nil
	case model.DocumentTable:
		rows, err := parseTable(doc.Content)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for i, row := range rows {
			cells := make([]string, len(row))
			for j, c := range row {
				cells[j] = strings.ReplaceAll(c, "|", `\|`)
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
			if i == 0 {
				sep := make([]string, len(row))
				for j := range sep {
					sep[j] = "---"
				}
				sb.WriteString("| " + strings.Join(sep, " | ") + " |\n")
			}
		}
		return sb.String(), nil
	default:
		return doc.Content + "\n", nil
	}
}

func renderMarkdown(doc model.Document) ([]byte, error) {
	body, err := markdownBody(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("# " + doc.Title + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func renderJSON(doc model.Document) ([]byte, error) {
	if doc.Type == model.DocumentDiagram {
		if _, err := decodeDiagram(doc.Content); err != nil {
			return nil, err
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}
