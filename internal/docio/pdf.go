package docio

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PDF layout: Letter paper, one-inch margins, Helvetica with 14pt leading.
const (
	pdfMargin  = 72
	pdfLeading = 14
)

// ToPDF renders the bundle as a PDF. Markdown headings map to larger bold
// text; body lines are 11pt. Text runs through the cp1252 translator so
// curly quotes, dashes, and accented names survive the core-font encoding.
func (b Bundle) ToPDF() ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, line := range strings.Split(b.Markdown(), "\n") {
		var text string
		switch {
		case strings.HasPrefix(line, "### "):
			doc.SetFont("Helvetica", "B", 12)
			text = strings.TrimPrefix(line, "### ")
		case strings.HasPrefix(line, "## "):
			doc.SetFont("Helvetica", "B", 14)
			text = strings.TrimPrefix(line, "## ")
		case strings.HasPrefix(line, "# "):
			doc.SetFont("Helvetica", "B", 18)
			text = strings.TrimPrefix(line, "# ")
		default:
			doc.SetFont("Helvetica", "", 11)
			text = line
		}
		if text == "" {
			doc.Ln(pdfLeading)
			continue
		}
		doc.MultiCell(0, pdfLeading, tr(text), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
