package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/atinyakov/commlog/internal/models"
)

// columnWidths fit Columns on an A4 landscape page with 10mm margins.
var columnWidths = []float64{30, 25, 40, 55, 67, 35, 25}

const (
	lineHeight = 7
	margin     = 10
)

// PDF renders printable reports with the core Helvetica font.
type PDF struct{}

// ContentType implements Renderer.
func (PDF) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (PDF) Extension() string { return "pdf" }

// Single implements Renderer.
func (PDF) Single(l models.Log) ([]byte, error) {
	pdf := newDocument("P", "Communication Log Report")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading(pdf, tr("Communication Log Report"))

	row := Row(l)
	for i, label := range Columns {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, lineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(row[i]), "", "L", false)
	}
	if l.UserName != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, lineHeight, "Recorded By", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(l.UserName), "", "L", false)
	}

	return output(pdf)
}

// Summary implements Renderer.
func (PDF) Summary(title string, logs []models.Log) ([]byte, error) {
	pdf := newDocument("L", title)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading(pdf, tr(title))
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("%d record(s)", len(logs)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range Columns {
			pdf.CellFormat(columnWidths[i], lineHeight, tr(col), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	for _, l := range logs {
		if pdf.GetY()+lineHeight > pageHeight-margin {
			pdf.AddPage()
			header()
		}
		for i, cell := range Row(l) {
			pdf.CellFormat(columnWidths[i], lineHeight, fit(pdf, tr(cell), columnWidths[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

func newDocument(orientation, title string) *fpdf.Fpdf {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("commlog", false)
	pdf.SetCreationDate(time.Now().UTC())
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	return pdf
}

func heading(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, lineHeight, "Generated "+time.Now().UTC().Format(dateLayout)+" UTC", "", 1, "L", false, 0, "")
	pdf.Ln(3)
}

// fit truncates s with an ellipsis so that it renders within width. s is
// already translated to the single-byte font encoding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
