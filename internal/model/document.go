package model

type DocumentType string

const (
	DocumentText    DocumentType = "text"
	DocumentDiagram DocumentType = "diagram"
	DocumentTable   DocumentType = "table"
)

// Document is a generated document as listed by the document source.
// Diagram content is a base64 image, optionally in data URI form.
type Document struct {
	ID      string       `json:"id"`
	Type    DocumentType `json:"type"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Status  string       `json:"status"`
}

// File is a rendered document ready to be transferred.
type File struct {
	DocumentID string
	Name       string
	MimeType   string
	Data       []byte
}
