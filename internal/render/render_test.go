package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/webitel/document-exporter/internal/model"
)

func diagramContent(t *testing.T, width, height int, dataURI bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	if dataURI {
		return "data:image/png;base64," + encoded
	}
	return encoded
}

func testDocuments(t *testing.T) []model.Document {
	return []model.Document{
		{ID: "d1", Type: model.DocumentText, Title: "Release Notes", Content: "First line\n\nSecond **bold** line"},
		{ID: "d2", Type: model.DocumentTable, Title: "Budget", Content: "item,cost\nservers,100\nlicenses,50"},
		{ID: "d3", Type: model.DocumentDiagram, Title: "Architecture", Content: diagramContent(t, 40, 20, true)},
	}
}

func TestRenderAllFormats(t *testing.T) {
	formats := []model.Format{
		model.FormatPDF,
		model.FormatHTML,
		model.FormatMarkdown,
		model.FormatXLSX,
		model.FormatText,
		model.FormatJSON,
	}
	for _, doc := range testDocuments(t) {
		for _, f := range formats {
			t.Run(doc.ID+"/"+string(f), func(t *testing.T) {
				file, err := Render(doc, f)
				require.NoError(t, err)
				assert.Equal(t, doc.ID, file.DocumentID)
				assert.Equal(t, f.MimeType(), file.MimeType)
				assert.True(t, strings.HasSuffix(file.Name, f.Extension()), file.Name)
				assert.NotEmpty(t, file.Data)
			})
		}
	}
}

func TestRenderPDFHeader(t *testing.T) {
	file, err := Render(testDocuments(t)[0], model.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestRenderHTMLConvertsMarkdown(t *testing.T) {
	file, err := Render(testDocuments(t)[0], model.FormatHTML)
	require.NoError(t, err)
	out := string(file.Data)
	assert.Contains(t, out, "<h1>Release Notes</h1>")
	assert.Contains(t, out, "<strong>bold</strong>")

	file, err = Render(testDocuments(t)[1], model.FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "<table>")
}

func TestRenderMarkdownTable(t *testing.T) {
	file, err := Render(testDocuments(t)[1], model.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Budget\n\n| item | cost |\n| --- | --- |\n| servers | 100 |\n| licenses | 50 |\n", string(file.Data))
}

func TestRenderXLSXTable(t *testing.T) {
	file, err := Render(testDocuments(t)[1], model.FormatXLSX)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()

	title, err := wb.GetCellValue(xlsxSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Budget", title)
	cost, err := wb.GetCellValue(xlsxSheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "100", cost)
}

func TestRenderJSON(t *testing.T) {
	doc := testDocuments(t)[0]
	file, err := Render(doc, model.FormatJSON)
	require.NoError(t, err)
	var got model.Document
	require.NoError(t, json.Unmarshal(file.Data, &got))
	assert.Equal(t, doc, got)
}

func TestRenderMalformedDiagram(t *testing.T) {
	doc := model.Document{ID: "bad", Type: model.DocumentDiagram, Title: "Broken", Content: "not base64!!"}
	for _, f := range []model.Format{model.FormatPDF, model.FormatHTML, model.FormatText} {
		_, err := Render(doc, f)
		assert.Error(t, err, f)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(testDocuments(t)[0], "docx")
	assert.Error(t, err)
}

func TestFitImageDownscalesWideDiagrams(t *testing.T) {
	raw, err := decodeDiagram(diagramContent(t, 2400, 100, false))
	require.NoError(t, err)
	out, err := fitImage(raw)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, maxDiagramWidth, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestFileName(t *testing.T) {
	pattern := regexp.MustCompile(`^q3-roadmap-draft-[0-9a-z]{8}\.md$`)
	name, err := FileName(model.Document{ID: "d1", Title: "Q3 Roadmap (draft)"}, model.FormatMarkdown)
	require.NoError(t, err)
	assert.Regexp(t, pattern, name)

	other, err := FileName(model.Document{ID: "d1", Title: "Q3 Roadmap (draft)"}, model.FormatMarkdown)
	require.NoError(t, err)
	assert.NotEqual(t, name, other)

	name, err = FileName(model.Document{ID: "doc-7", Title: "  "}, model.FormatPDF)
	require.NoError(t, err)
	assert.Regexp(t, `^doc-7-[0-9a-z]{8}\.pdf$`, name)
}
