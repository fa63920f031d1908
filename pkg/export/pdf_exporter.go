package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	lineHeight   = 4.5
	landscapeMin = 5
)

// PDFExporter renders datasets into a tabular PDF. Wide tables switch to landscape.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title, an optional subtitle and the table body.
// The first column is kept narrow for row labels.
func (e *PDFExporter) Render(data Dataset, subtitle string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation := "P"
	if len(data.Headers) > landscapeMin {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	widths := columnWidths(pageWidth-left-right, len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		height := rowHeight(pdf, data.Headers, widths, row)
		x, y := pdf.GetXY()
		for i, header := range data.Headers {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.SetXY(x, y)
			pdf.MultiCell(widths[i], lineHeight, row[header], "", "C", false)
			x += widths[i]
		}
		pdf.SetXY(left, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(total float64, columns int) []float64 {
	widths := make([]float64, columns)
	if columns == 1 {
		widths[0] = total
		return widths
	}
	label := total * 0.12
	rest := (total - label) / float64(columns-1)
	widths[0] = label
	for i := 1; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}

func rowHeight(pdf *gofpdf.Fpdf, headers []string, widths []float64, row map[string]string) float64 {
	lines := 1
	for i, header := range headers {
		if n := len(pdf.SplitLines([]byte(row[header]), widths[i]-2)); n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 2
}
