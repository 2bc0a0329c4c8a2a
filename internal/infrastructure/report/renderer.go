package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const (
	margin     = 54.0
	footerY    = -36.0
	fontFamily = "Helvetica"
)

// Renderer draws report layouts with fpdf. Output is byte-for-byte stable
// for the same input.
type Renderer struct {
	compress bool
}

var _ ports.ReportRenderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{compress: true}
}

func (r *Renderer) Render(in ports.ReportInput) ([]byte, error) {
	blocks := BuildLayout(in)

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.SetModificationDate(in.GeneratedAt)
	pdf.SetCreator("pdfrealm secure ai notes", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(blocks[0].Text), false)
	pdf.AddPage()

	for _, b := range blocks {
		drawBlock(pdf, tr, b)
	}

	// Footer pass: the page count is only known once content is laid out.
	pdf.SetAutoPageBreak(false, 0)
	total := pdf.PageCount()
	for page := 1; page <= total; page++ {
		pdf.SetPage(page)
		// Force a font operator into this page's content stream.
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.SetY(footerY)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of %d", page, total), "", 0, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errs.Wrap(err, "render pdf")
	}
	return buf.Bytes(), nil
}

func drawBlock(pdf *fpdf.Fpdf, tr func(string) string, b Block) {
	pdf.SetTextColor(0, 0, 0)
	switch b.Kind {
	case BlockTitle:
		pdf.SetFont(fontFamily, "B", 18)
		pdf.MultiCell(0, 22, tr(b.Text), "", "L", false)
		pdf.Ln(6)
	case BlockMeta:
		pdf.SetFont(fontFamily, "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 14, tr(b.Text), "", "L", false)
	case BlockHeading:
		pdf.Ln(10)
		pdf.SetFont(fontFamily, "B", 13)
		pdf.MultiCell(0, 17, tr(b.Text), "", "L", false)
		pdf.Ln(2)
	case BlockSubheading:
		pdf.SetFont(fontFamily, "B", 11)
		pdf.MultiCell(0, 15, tr(b.Text), "", "L", false)
	case BlockParagraph:
		pdf.SetFont(fontFamily, "", 11)
		pdf.MultiCell(0, 15, tr(b.Text), "", "L", false)
		pdf.Ln(2)
	case BlockBullet:
		pdf.SetFont(fontFamily, "", 11)
		pdf.MultiCell(0, 15, tr("• "+b.Text), "", "L", false)
	case BlockTranscriptLine:
		pdf.SetFont("Courier", "", 9)
		pdf.MultiCell(0, 12, tr(b.Text), "", "L", false)
	}
}
