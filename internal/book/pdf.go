package book

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

const bookHeader = "LifeCache Memory Book"

// RenderPDF writes b as a PDF: cover, summary, selected excerpts and an
// emotion profile bar chart.
func RenderPDF(w io.Writer, b *Book) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 10, bookHeader, "", 1, "C", false, 0, "")
		pdf.Ln(2)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.SetAutoPageBreak(true, 15)

	// Cover
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, tr(b.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	if len(b.Recipients) > 0 {
		pdf.MultiCell(0, 8, tr("For: "+strings.Join(b.Recipients, ", ")), "", "", false)
	}
	pdf.MultiCell(0, 8, fmt.Sprintf("%d memories, compiled %s", len(b.Entries), b.GeneratedAt.Format("January 2, 2006")), "", "", false)

	// Summary
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	summary := strings.Join(b.Summary, " ")
	if summary == "" {
		summary = "No summary available yet."
	}
	pdf.MultiCell(0, 7, tr(summary), "", "", false)

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, "Selected Excerpts", "", 1, "", false, 0, "")
	shown := 0
	for _, e := range b.Entries {
		if e.Excerpt == "" || shown == MaxExcerpts {
			continue
		}
		shown++
		if e.Title != "" {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, tr(e.Title), "", "", false)
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr("• "+e.Excerpt), "", "", false)
		pdf.Ln(1)
	}

	if len(b.Emotions) > 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, "Emotion Profile", "", 1, "", false, 0, "")
		drawEmotionChart(pdf, b.Emotions)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

// drawEmotionChart draws one horizontal bar per emotion, scaled to the
// strongest score.
func drawEmotionChart(pdf *fpdf.Fpdf, scores []EmotionScore) {
	const (
		labelW = 30.0
		barMax = 130.0
		barH   = 7.0
		gap    = 3.0
	)

	maxScore := 0.0
	for _, s := range scores {
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}

	left, _, _, _ := pdf.GetMargins()
	y := pdf.GetY() + 4
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(108, 143, 245)

	for _, s := range scores {
		pdf.SetXY(left, y)
		pdf.CellFormat(labelW, barH, s.Emotion, "", 0, "R", false, 0, "")
		width := 0.0
		if maxScore > 0 {
			width = s.Score / maxScore * barMax
		}
		if width > 0 {
			pdf.Rect(left+labelW+2, y, width, barH, "F")
		}
		pdf.SetXY(left+labelW+4+width, y)
		pdf.CellFormat(20, barH, fmt.Sprintf("%.2f", s.Score), "", 0, "L", false, 0, "")
		y += barH + gap
	}
	pdf.SetY(y)
}
