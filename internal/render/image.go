package render

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// maxDiagramWidth keeps embedded diagrams within an A4 column at print resolution.
const maxDiagramWidth = 1200

// fitImage decodes a diagram, downsizes it if it is wider than maxDiagramWidth
// and re-encodes it as PNG.
func fitImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > maxDiagramWidth {
		img = imaging.Resize(img, maxDiagramWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
