package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// WriteDOCX renders the agreement as a minimal WordprocessingML package:
// the content types part, the package relationships and a single document
// part. Word, LibreOffice and Google Docs all accept this layout.
func WriteDOCX(a *Agreement, w io.Writer) error {
	archive := zip.NewWriter(w)

	parts := []struct {
		name    string
		content []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRels)},
		{"word/document.xml", buildDocumentXML(a)},
	}

	for _, part := range parts {
		f, err := archive.Create(part.name)
		if err != nil {
			return fmt.Errorf("failed to create docx part %s: %w", part.name, err)
		}
		if _, err := f.Write(part.content); err != nil {
			return fmt.Errorf("failed to write docx part %s: %w", part.name, err)
		}
	}

	return archive.Close()
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

func buildDocumentXML(a *Agreement) []byte {
	var body bytes.Buffer

	para := func(text string, bold bool, size int) {
		body.WriteString("<w:p><w:pPr><w:spacing w:after=\"120\"/></w:pPr><w:r><w:rPr>")
		body.WriteString("<w:rFonts w:ascii=\"Times New Roman\" w:hAnsi=\"Times New Roman\"/>")
		if bold {
			body.WriteString("<w:b/>")
		}
		fmt.Fprintf(&body, "<w:sz w:val=\"%d\"/>", size*2)
		body.WriteString("</w:rPr><w:t xml:space=\"preserve\">")
		body.WriteString(escapeXML(text))
		body.WriteString("</w:t></w:r></w:p>")
	}

	para(Heading(a.Kind), true, 16)
	para(a.Title, false, 11)
	para("", false, 11)
	para(a.preamble(), false, 11)

	writeParty := func(label string, p Party) {
		para(label, true, 11)
		for _, line := range p.Lines() {
			para(line, false, 11)
		}
		para("", false, 11)
	}

	writeParty("Disclosing Party:", a.Disclosing)
	writeParty("Receiving Party:", a.Receiving)
	for i, p := range a.Additional {
		writeParty(fmt.Sprintf("Additional Party %d:", i+1), p)
	}

	fields := a.FieldSet()
	for i, clause := range a.Clauses {
		para(fmt.Sprintf("%d. %s", i+1, clause.Title), true, 12)
		para(Interpolate(clause.Body, fields), false, 11)
	}

	para("IN WITNESS WHEREOF, the parties have executed this Agreement as of the date first written above.", true, 11)
	para("", false, 11)

	signature := func(p Party) {
		para("_________________________________", false, 11)
		para(p.Name, false, 11)
		if p.Title != "" {
			para(p.Title, false, 11)
		}
		para("Date: _______________", false, 11)
		para("", false, 11)
	}
	signature(a.Disclosing)
	signature(a.Receiving)
	for _, p := range a.Additional {
		signature(p)
	}

	para(a.footer(), false, 8)

	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	doc.WriteString("\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	doc.Write(body.Bytes())
	doc.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr>`)
	doc.WriteString(`</w:body></w:document>`)
	return doc.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
