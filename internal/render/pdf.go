package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// WritePDF renders the agreement as a Letter-format PDF with one-inch
// margins, numbered clauses and signature blocks.
func WritePDF(a *Agreement, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(25.4, 25.4, 25.4)
	pdf.SetAutoPageBreak(true, 25.4)
	pdf.AddPage()

	pdf.SetFont("Times", "B", 16)
	pdf.CellFormat(0, 9, Heading(a.Kind), "", 1, "C", false, 0, "")
	pdf.SetFont("Times", "", 11)
	pdf.CellFormat(0, 6, a.Title, "B", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Times", "", 11)
	pdf.MultiCell(0, 5.5, a.preamble(), "", "J", false)
	pdf.Ln(3)

	writeParty := func(label string, p Party) {
		pdf.SetFont("Times", "B", 11)
		pdf.CellFormat(0, 6, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Times", "", 11)
		for _, line := range p.Lines() {
			pdf.CellFormat(0, 5.5, line, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	writeParty("Disclosing Party:", a.Disclosing)
	writeParty("Receiving Party:", a.Receiving)
	for i, p := range a.Additional {
		writeParty(fmt.Sprintf("Additional Party %d:", i+1), p)
	}
	pdf.Ln(2)

	fields := a.FieldSet()
	for i, clause := range a.Clauses {
		pdf.SetFont("Times", "B", 12)
		pdf.CellFormat(0, 7, fmt.Sprintf("%d. %s", i+1, clause.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Times", "", 11)
		pdf.MultiCell(0, 5.5, Interpolate(clause.Body, fields), "", "J", false)
		pdf.Ln(2)
	}

	pdf.Ln(4)
	pdf.SetFont("Times", "B", 11)
	pdf.MultiCell(0, 5.5, "IN WITNESS WHEREOF, the parties have executed this Agreement as of the date first written above.", "", "J", false)
	pdf.Ln(8)

	writeSignatureBlock(pdf, a.Disclosing)
	writeSignatureBlock(pdf, a.Receiving)
	for _, p := range a.Additional {
		writeSignatureBlock(pdf, p)
	}

	pdf.Ln(8)
	pdf.SetFont("Times", "I", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, a.footer(), "T", 1, "L", false, 0, "")

	return pdf.Output(w)
}

func writeSignatureBlock(pdf *fpdf.Fpdf, p Party) {
	x, y := pdf.GetX(), pdf.GetY()
	pdf.Line(x, y, x+80, y)
	pdf.Ln(1.5)
	pdf.SetFont("Times", "", 11)
	pdf.CellFormat(0, 5.5, p.Name, "", 1, "L", false, 0, "")
	if p.Title != "" {
		pdf.CellFormat(0, 5.5, p.Title, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5.5, "Date: _______________", "", 1, "L", false, 0, "")
	pdf.Ln(6)
}
