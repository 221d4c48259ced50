// Package ingestion turns raw clinical files into cleaned, dated, typed
// Documents. It performs no medical reasoning.
package ingestion

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// MinTextLength is the shortest trimmed raw text accepted as a document.
const MinTextLength = 20

var (
	pageFooterRe  = regexp.MustCompile(`(?i)\n\s*page\s+\d+\s*\n`)
	hSpaceRe      = regexp.MustCompile(`[ \t]+`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
	hyphenBreakRe = regexp.MustCompile(`(\w)-\n(\w)`)
)

// Clean normalizes OCR output while keeping clinical content intact.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = pageFooterRe.ReplaceAllString(text, "\n")
	text = hSpaceRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = hyphenBreakRe.ReplaceAllString(text, "${1}${2}")
	return strings.TrimSpace(norm.NFC.String(text))
}

// datePattern pairs a search expression with the layout used to parse its match.
type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`), "02/01/2006"},
	{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
	{regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4})\b`), "02-01-2006"},
}

// ExtractDate returns the first parseable date in text as YYYY-MM-DD, or nil.
// Only the first match of each pattern is tried; an invalid calendar date
// moves on to the next pattern.
func ExtractDate(text string) *string {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		t, err := time.Parse(p.layout, m[1])
		if err != nil {
			continue
		}
		return clinical.StringPtr(t.Format("2006-01-02"))
	}
	return nil
}

// docTypeRule maps markers to a document type. Rules are checked in order.
type docTypeRule struct {
	docType string
	markers []string
}

var docTypeRules = []docTypeRule{
	{clinical.DocTypeDischargeSummary, []string{"discharge summary"}},
	{clinical.DocTypeRadiologyReport, []string{"radiology", "ct scan", "x-ray"}},
	{clinical.DocTypeLabReport, []string{"lab results", "hemoglobin"}},
	{clinical.DocTypeClinicalNote, []string{"history of present illness", "chief complaint"}},
}

// InferDocType classifies text by keyword markers. Extraction re-detects lab
// reports on its own; this tag is stored on the Document for downstream use.
func InferDocType(text string) string {
	lowered := strings.ToLower(text)
	for _, r := range docTypeRules {
		for _, marker := range r.markers {
			if strings.Contains(lowered, marker) {
				return r.docType
			}
		}
	}
	return clinical.DocTypeUnknown
}

//Personal.AI order the ending
