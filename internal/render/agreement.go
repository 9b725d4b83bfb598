// Package render produces the PDF and DOCX renditions of a generated
// agreement. Both renderers consume the same prepared Agreement value and
// write to an io.Writer; file placement belongs to the caller.
package render

import (
	"fmt"
	"regexp"
	"strings"
)

type Party struct {
	Name    string
	Title   string
	Company string
	Address string
	Email   string
	Phone   string
}

type Clause struct {
	Title string
	Body  string
}

type Agreement struct {
	DocumentID     string
	Title          string
	Kind           string
	EffectiveDate  string
	ExpirationDate string
	GoverningLaw   string
	Disclosing     Party
	Receiving      Party
	Additional     []Party
	Clauses        []Clause
	Fields         map[string]string
	GeneratedAt    string
}

// Blank is rendered for placeholders and dates left unanswered.
const Blank = "____________"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Interpolate resolves {{field}} markers in clause text from the supplied
// field values. Unresolved markers render as blanks so the printed agreement
// can be completed by hand.
func Interpolate(body string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := fields[key]; ok && v != "" {
			return v
		}
		return Blank
	})
}

// Heading returns the printed agreement title for a template kind.
func Heading(kind string) string {
	switch kind {
	case "bilateral":
		return "MUTUAL NON-DISCLOSURE AGREEMENT"
	case "unilateral":
		return "UNILATERAL NON-DISCLOSURE AGREEMENT"
	case "multilateral":
		return "MULTILATERAL NON-DISCLOSURE AGREEMENT"
	}
	return "NON-DISCLOSURE AGREEMENT"
}

// FieldSet merges party attributes and questionnaire responses into the
// lookup used for clause interpolation.
func (a *Agreement) FieldSet() map[string]string {
	fields := make(map[string]string, len(a.Fields)+16)
	for k, v := range a.Fields {
		fields[k] = v
	}

	addParty := func(prefix string, p Party) {
		fields[prefix+".name"] = p.Name
		fields[prefix+".title"] = p.Title
		fields[prefix+".company"] = p.Company
		fields[prefix+".address"] = p.Address
		fields[prefix+".email"] = p.Email
		fields[prefix+".phone"] = p.Phone
	}
	addParty("disclosing_party", a.Disclosing)
	addParty("receiving_party", a.Receiving)

	fields["effective_date"] = a.EffectiveDate
	fields["expiration_date"] = a.ExpirationDate
	fields["governing_law"] = a.GoverningLaw
	fields["document_name"] = a.Title

	return fields
}

func (p Party) Lines() []string {
	lines := []string{p.Name}
	if p.Title != "" {
		lines = append(lines, p.Title)
	}
	if p.Company != "" {
		lines = append(lines, p.Company)
	}
	if p.Address != "" {
		lines = append(lines, p.Address)
	}
	if p.Email != "" {
		lines = append(lines, "Email: "+p.Email)
	}
	if p.Phone != "" {
		lines = append(lines, "Phone: "+p.Phone)
	}
	return lines
}

func (a *Agreement) preamble() string {
	effective := a.EffectiveDate
	if effective == "" {
		effective = Blank
	}
	return fmt.Sprintf("This %s (\"Agreement\") is entered into on %s by and between the parties identified below.",
		titleCaseHeading(a.Kind), effective)
}

func titleCaseHeading(kind string) string {
	heading := strings.ToLower(Heading(kind))
	words := strings.Fields(heading)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (a *Agreement) footer() string {
	return fmt.Sprintf("Generated by NDARite on %s. Document ID: %s", a.GeneratedAt, a.DocumentID)
}
