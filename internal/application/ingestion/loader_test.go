package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

type skipCounter map[string]int

func (s skipCounter) RecordDocumentSkipped(reason string) { s[reason]++ }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

const noteText = "Chief complaint: fever for two days.\r\nVisit date 14/08/2024.\nPatient denies cough."

func TestLoader_LoadTextFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "note.txt", noteText)

	docs, errs := LoadTextFiles(context.Background(), []string{p})
	require.Empty(t, errs)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "note.txt", doc.Source)
	assert.Equal(t, "2024-08-14", clinical.Deref(doc.Date))
	assert.Equal(t, clinical.DocTypeClinicalNote, doc.DocType)
	assert.NotContains(t, doc.Text, "\r")
}

func TestLoader_SkipsAndReports(t *testing.T) {
	dir := t.TempDir()
	short := writeFile(t, dir, "short.txt", "   too short   ")
	pdf := writeFile(t, dir, "scan.pdf", "%PDF-1.4")
	good := writeFile(t, dir, "good.txt", noteText)
	missing := filepath.Join(dir, "missing.txt")

	skips := skipCounter{}
	docs, errs := NewLoader(WithSkipRecorder(skips)).Load(context.Background(), []string{short, pdf, missing, good})

	require.Len(t, docs, 1)
	assert.Equal(t, "good.txt", docs[0].Source)
	require.Len(t, errs, 3)
	assert.True(t, errors.IsCode(errs[0], errors.ErrCodeDocumentTooShort))
	assert.True(t, errors.IsCode(errs[1], errors.ErrCodeUnsupportedFormat))
	assert.True(t, errors.IsCode(errs[2], errors.ErrCodeIngestionReadFailed))
	assert.Equal(t, skipCounter{SkipTooShort: 1, SkipUnsupported: 1, SkipReadFailed: 1}, skips)
}

func TestLoader_RegisteredExtractor(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "scan.PDF", "binary")
	broken := writeFile(t, dir, "broken.png", "binary")

	ocr := TextExtractorFunc(func(_ context.Context, path string) (string, error) {
		if filepath.Ext(path) == ".png" {
			return "", fmt.Errorf("ocr engine unavailable")
		}
		return "LAB RESULTS\nHemoglobin 10.2 g/dL on 2024-06-01", nil
	})
	l := NewLoader(WithExtractor(".pdf", ocr), WithExtractor(".png", ocr))

	docs, errs := l.Load(context.Background(), []string{pdf, broken})
	require.Len(t, docs, 1)
	assert.Equal(t, clinical.DocTypeLabReport, docs[0].DocType)
	assert.Equal(t, "2024-06-01", clinical.Deref(docs[0].Date))
	require.Len(t, errs, 1)
	assert.True(t, errors.IsCode(errs[0], errors.ErrCodeIngestionReadFailed))
	assert.Contains(t, errs[0].Error(), "ocr engine unavailable")
}

func TestLoader_ExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", noteText)
	writeFile(t, dir, "a.txt", noteText)
	writeFile(t, dir, "ignored.csv", noteText)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	docs, errs := LoadTextFiles(context.Background(), []string{dir})
	assert.Empty(t, errs)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Source)
	assert.Equal(t, "b.txt", docs[1].Source)
}

func TestLoader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "note.txt", noteText)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs, errs := LoadTextFiles(ctx, []string{p})
	assert.Empty(t, docs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestLoader_InvalidUTF8IsDropped(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "ocr.txt", "Chief complaint \xff\xfe: chest pain since morning")

	docs, errs := LoadTextFiles(context.Background(), []string{p})
	require.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "Chief complaint : chest pain since morning", docs[0].Text)
}

func TestPrepare(t *testing.T) {
	doc, err := Prepare("kafka:42", "  Discharge summary issued 2024-08-01 \n\n\n\n follow up ")
	require.NoError(t, err)
	assert.Equal(t, "kafka:42", doc.Source)
	assert.Equal(t, clinical.DocTypeDischargeSummary, doc.DocType)
	assert.Equal(t, "Discharge summary issued 2024-08-01 \n\n follow up", doc.Text)

	_, err = Prepare("x", "é é é é é é é é é é")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentTooShort))
}

//Personal.AI order the ending
