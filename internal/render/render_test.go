package render

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func sampleAgreement() *Agreement {
	return &Agreement{
		DocumentID:    "doc-123",
		Title:         "Acme Mutual NDA",
		Kind:          "bilateral",
		EffectiveDate: "January 2, 2026",
		GoverningLaw:  "California",
		Disclosing: Party{
			Name:    "Jane Smith",
			Company: "Acme Corp",
			Email:   "jane@acme.example",
		},
		Receiving: Party{
			Name:  "Bob Jones",
			Email: "bob@widgets.example",
		},
		Clauses: []Clause{
			{Title: "Definition", Body: "Confidential Information relates to {{purpose}}."},
			{Title: "Term", Body: "Obligations last {{confidentiality_period}} under the laws of {{governing_law}}."},
		},
		Fields: map[string]string{
			"purpose":                "a proposed acquisition",
			"confidentiality_period": "two years",
		},
		GeneratedAt: "January 2, 2026",
	}
}

func TestInterpolate(t *testing.T) {
	fields := map[string]string{
		"purpose": "a joint venture",
		"empty":   "",
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "resolved", body: "relating to {{purpose}}", want: "relating to a joint venture"},
		{name: "with spaces", body: "relating to {{ purpose }}", want: "relating to a joint venture"},
		{name: "unknown becomes blank", body: "governed by {{governing_law}}", want: "governed by " + Blank},
		{name: "empty becomes blank", body: "note: {{empty}}", want: "note: " + Blank},
		{name: "no markers", body: "plain text", want: "plain text"},
		{name: "multiple", body: "{{purpose}} and {{purpose}}", want: "a joint venture and a joint venture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.body, fields); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestFieldSetMergesParties(t *testing.T) {
	a := sampleAgreement()
	fields := a.FieldSet()

	checks := map[string]string{
		"purpose":                 "a proposed acquisition",
		"disclosing_party.name":   "Jane Smith",
		"disclosing_party.company": "Acme Corp",
		"receiving_party.email":   "bob@widgets.example",
		"effective_date":          "January 2, 2026",
		"governing_law":           "California",
		"document_name":           "Acme Mutual NDA",
	}
	for key, want := range checks {
		if got := fields[key]; got != want {
			t.Errorf("fields[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestHeading(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"bilateral", "MUTUAL NON-DISCLOSURE AGREEMENT"},
		{"unilateral", "UNILATERAL NON-DISCLOSURE AGREEMENT"},
		{"multilateral", "MULTILATERAL NON-DISCLOSURE AGREEMENT"},
		{"other", "NON-DISCLOSURE AGREEMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := Heading(tt.kind); got != tt.want {
				t.Errorf("Heading(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(sampleAgreement(), &buf); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with PDF header: %q", out[:min(8, len(out))])
	}
	if len(out) < 1000 {
		t.Errorf("suspiciously small PDF: %d bytes", len(out))
	}
}

func TestWriteDOCX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDOCX(sampleAgreement(), &buf); err != nil {
		t.Fatalf("WriteDOCX: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a zip archive: %v", err)
	}

	parts := map[string]bool{}
	for _, f := range reader.File {
		parts[f.Name] = true
	}
	for _, want := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if !parts[want] {
			t.Errorf("missing archive part %q", want)
		}
	}

	var document string
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read document.xml: %v", err)
		}
		document = string(data)
	}

	for _, want := range []string{
		"MUTUAL NON-DISCLOSURE AGREEMENT",
		"Jane Smith",
		"a proposed acquisition",
	} {
		if !strings.Contains(document, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}
	if strings.Contains(document, "{{purpose}}") {
		t.Error("unresolved placeholder left in document.xml")
	}
}
