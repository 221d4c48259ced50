package clinical_nlp

import (
	"strings"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// LabReportMarkerThreshold is the number of distinct lab markers that makes a
// document a lab-style report.
const LabReportMarkerThreshold = 2

// DetectDocType classifies text as lab_report when at least
// LabReportMarkerThreshold markers occur in it, otherwise clinical_note.
// Each marker counts once regardless of how often it appears.
func DetectDocType(text string, markers []string) string {
	lower := strings.ToLower(text)
	hits := 0
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			hits++
			if hits >= LabReportMarkerThreshold {
				return clinical.DocTypeLabReport
			}
		}
	}
	return clinical.DocTypeClinicalNote
}

// ResolveSection returns the document's own section when set, otherwise the
// section implied by the detected document type.
func ResolveSection(doc clinical.Document, docType string) string {
	if s := strings.TrimSpace(doc.Section); s != "" {
		return s
	}
	if docType == clinical.DocTypeLabReport {
		return clinical.SectionLabResults
	}
	return clinical.SectionClinical
}

//Personal.AI order the ending
