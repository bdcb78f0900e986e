package render

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/webitel/document-exporter/internal/model"
)

const xlsxSheet = "Sheet1"

func renderXLSX(doc model.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(xlsxSheet, "A1", doc.Title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "A1", bold); err != nil {
		return nil, err
	}

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
		if err := f.AddPictureFromBytes(xlsxSheet, "A3", &excelize.Picture{
			Extension: ".png",
			File:      img,
			Format:    &excelize.GraphicOptions{AltText: doc.Title},
		}); err != nil {
			return nil, fmt.Errorf("add diagram: %w", err)
		}
	case model.DocumentTable:
		rows, err := parseTable(doc.Content)
		if err != nil {
			return nil, err
		}
		if err := writeRows(f, rows, 3); err != nil {
			return nil, err
		}
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 3)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(xlsxSheet, "A3", last, bold); err != nil {
			return nil, err
		}
	default:
		lines := strings.Split(doc.Content, "\n")
		rows := make([][]string, len(lines))
		for i, line := range lines {
			rows[i] = []string{line}
		}
		if err := writeRows(f, rows, 3); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, rows [][]string, firstRow int) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, firstRow+r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(xlsxSheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
