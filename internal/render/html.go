package render

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/webitel/document-exporter/internal/model"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func renderHTML(doc model.Document) ([]byte, error) {
	body, err := markdownBody(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	buf.WriteString(html.EscapeString(doc.Title))
	buf.WriteString("</title>\n</head>\n<body>\n<h1>")
	buf.WriteString(html.EscapeString(doc.Title))
	buf.WriteString("</h1>\n")
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return nil, err
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}
