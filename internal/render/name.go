package render

import (
	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/webitel/document-exporter/internal/model"
)

const (
	nameAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	nameSuffixLen = 8
	maxSlugLen    = 80
)

// FileName builds "<slug(title)>-<random>.<ext>". The random suffix keeps two
// documents with the same title from overwriting each other at the target.
func FileName(doc model.Document, format model.Format) (string, error) {
	base := slug.Make(doc.Title)
	if base == "" {
		base = slug.Make(doc.ID)
	}
	if base == "" {
		base = "document"
	}
	if len(base) > maxSlugLen {
		base = base[:maxSlugLen]
	}
	suffix, err := gonanoid.Generate(nameAlphabet, nameSuffixLen)
	if err != nil {
		return "", err
	}
	return base + "-" + suffix + format.Extension(), nil
}
