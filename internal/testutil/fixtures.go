package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// ClinicalNoteText reports fever and cough, names one medication and denies
// chest pain.
const ClinicalNoteText = `Chief complaint: fever and cough for three days.
Visit date 01/03/2024.
Started on paracetamol 500 mg twice daily.
Patient denies chest pain.`

// LabReportText is a short tabular lab report.
const LabReportText = `LAB RESULTS
Hemoglobin: 10.2 g/dL
WBC 11500 /mm3`

// FollowUpNoteText reports the fever and cough resolved.
const FollowUpNoteText = `Chief complaint: follow up on 08/03/2024. No fever today.`

// SampleDocuments returns three dated documents from two visits.
func SampleDocuments() []clinical.Document {
	return []clinical.Document{
		{Text: ClinicalNoteText, Date: clinical.StringPtr("2024-03-01"), Source: "visit_1.txt", DocType: clinical.DocTypeClinicalNote},
		{Text: LabReportText, Date: clinical.StringPtr("2024-03-01"), Source: "labs_1.txt", DocType: clinical.DocTypeLabReport},
		{Text: FollowUpNoteText, Date: clinical.StringPtr("2024-03-08"), Source: "visit_2.txt", DocType: clinical.DocTypeClinicalNote},
	}
}

// WriteFile writes content to name under dir and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteSampleFiles writes the two visit notes as .txt files and returns the
// directory. Their dates come from the note text.
func WriteSampleFiles(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, "visit_1.txt", ClinicalNoteText)
	WriteFile(t, dir, "visit_2.txt", FollowUpNoteText)
	return dir
}

//Personal.AI order the ending
