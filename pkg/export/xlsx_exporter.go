package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheet       = "Admissions"
	xlsxMinColWidth = 10.0
	xlsxMaxColWidth = 60.0
)

// XLSXExporter renders datasets as a single-sheet workbook with a bold,
// filtered and frozen header row.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the dataset into a workbook and returns its bytes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]float64, len(data.Headers))
	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
		widths[i] = columnWidth(h, xlsxMinColWidth)
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for r, row := range data.Rows {
		values := make([]interface{}, len(data.Headers))
		for i := range data.Headers {
			v := data.cell(row, i)
			values[i] = v
			widths[i] = columnWidth(v, widths[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(xlsxSheet, "A1", lastCol+"1", style)
	}
	_ = f.AutoFilter(xlsxSheet, fmt.Sprintf("A1:%s1", lastCol), nil)
	_ = f.SetPanes(xlsxSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(xlsxSheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidth(value string, current float64) float64 {
	w := float64(utf8.RuneCountInString(value)) * 1.1
	if w > xlsxMaxColWidth {
		w = xlsxMaxColWidth
	}
	if w > current {
		return w
	}
	return current
}
