package clinical_nlp

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// =========================================================================
// Mocks
// =========================================================================

type mockMatcher struct {
	name      string
	appliesFn func(docType string) bool
	matchFn   func(text string) []RawMention
}

func (m *mockMatcher) Name() string { return m.name }

func (m *mockMatcher) Applies(docType string) bool {
	if m.appliesFn != nil {
		return m.appliesFn(docType)
	}
	return true
}

func (m *mockMatcher) Match(text string) []RawMention {
	if m.matchFn != nil {
		return m.matchFn(text)
	}
	return nil
}

type mockMetrics struct {
	mu       sync.Mutex
	docTypes []string
	counts   []int
}

func (m *mockMetrics) RecordExtraction(_ context.Context, docType string, mentionCount int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docTypes = append(m.docTypes, docType)
	m.counts = append(m.counts, mentionCount)
}

func newTestExtractor(t *testing.T, opts ...Option) Extractor {
	t.Helper()
	ext, err := NewExtractor(DefaultExtractorConfig(), opts...)
	require.NoError(t, err)
	return ext
}

func normalizedOf(mentions []clinical.EntityMention) []string {
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		out = append(out, m.Normalized)
	}
	return out
}

// =========================================================================
// Extract
// =========================================================================

func TestExtract_ClinicalNote(t *testing.T) {
	ext := newTestExtractor(t)
	doc := clinical.Document{Text: sampleClinicalNote, Date: clinical.StringPtr("2024-08-14"), Source: "sample_note.txt"}

	res, err := ext.Extract(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, clinical.DocTypeClinicalNote, res.DocType)
	assert.Equal(t, clinical.SectionClinical, res.Section)
	assert.Equal(t, []string{
		"CHEST_PAIN", "SHORTNESS_OF_BREATH", "FEVER", "COUGH",
		"DIABETES", "HYPERTENSION",
		"HEMOGLOBIN", "WBC", "ESR",
		"ASPIRIN", "METFORMIN",
		"CT_SCAN",
	}, normalizedOf(res.Mentions))

	byID := map[string]clinical.EntityMention{}
	for _, m := range res.Mentions {
		byID[m.Normalized] = m
		assert.Equal(t, "2024-08-14", clinical.Deref(m.Date))
		assert.Equal(t, "sample_note.txt", m.Source)
		assert.Equal(t, clinical.SectionClinical, m.Section)
		assert.Equal(t, Normalize(m.Entity), m.Normalized)
		if m.Type == clinical.TypeLab {
			assert.NotNil(t, m.Value, m.Entity)
		}
	}
	assert.False(t, byID["CHEST_PAIN"].Negated)
	assert.True(t, byID["FEVER"].Negated)
	assert.True(t, byID["COUGH"].Negated)
	assert.Equal(t, "10.2", clinical.Deref(byID["HEMOGLOBIN"].Value))
	assert.Equal(t, "g/dL", clinical.Deref(byID["HEMOGLOBIN"].Unit))
	assert.Equal(t, clinical.SourceLabPattern, byID["ESR"].ExtractionSource)
	assert.Equal(t, clinical.SourceKeyword, byID["ASPIRIN"].ExtractionSource)
}

func TestExtract_LabReportUsesLineMatcher(t *testing.T) {
	ext := newTestExtractor(t)

	res, err := ext.Extract(context.Background(), clinical.Document{Text: sampleLabReport, Source: "lft.txt"})
	require.NoError(t, err)

	assert.Equal(t, clinical.DocTypeLabReport, res.DocType)
	require.Len(t, res.Mentions, 9)
	for _, m := range res.Mentions {
		assert.Equal(t, clinical.TypeLab, m.Type)
		assert.Equal(t, clinical.SourceLabLine, m.ExtractionSource)
		assert.Equal(t, clinical.SectionLabResults, m.Section)
		assert.Nil(t, m.Date)
	}
	assert.Equal(t, "SGOT", res.Mentions[1].Normalized)
	assert.Equal(t, "TOTAL_PROTEIN", res.Mentions[4].Normalized)
}

func TestExtract_LineMatcherDisabled(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.EnableLineMatcher = false
	ext, err := NewExtractor(cfg)
	require.NoError(t, err)

	res, err := ext.Extract(context.Background(), clinical.Document{
		Text: "Serum albumin low.\nHemoglobin 9.8 g/dL",
	})
	require.NoError(t, err)
	assert.Equal(t, clinical.DocTypeLabReport, res.DocType)
	require.Len(t, res.Mentions, 1)
	assert.Equal(t, clinical.SourceLabPattern, res.Mentions[0].ExtractionSource)
	assert.NotContains(t, ext.Matchers(), "lab_line")
}

func TestExtract_SectionOverride(t *testing.T) {
	ext := newTestExtractor(t)
	res, err := ext.Extract(context.Background(), clinical.Document{Text: "Complains of headache.", Section: "assessment"})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 1)
	assert.Equal(t, "assessment", res.Mentions[0].Section)
}

func TestExtract_EmptyText(t *testing.T) {
	metrics := &mockMetrics{}
	ext := newTestExtractor(t, WithMetrics(metrics))

	res, err := ext.Extract(context.Background(), clinical.Document{Source: "empty.txt"})
	require.NoError(t, err)
	assert.NotNil(t, res.Mentions)
	assert.Empty(t, res.Mentions)
	assert.Empty(t, metrics.counts)
}

func TestExtract_CancelledContext(t *testing.T) {
	ext := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ext.Extract(ctx, clinical.Document{Text: sampleClinicalNote})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_CustomMatcherRunsLast(t *testing.T) {
	vitals := &mockMatcher{
		name: "vitals",
		matchFn: func(text string) []RawMention {
			return []RawMention{{Entity: "blood pressure", Type: clinical.TypeProcedure, Context: "BP 120/80", Source: "vitals"}}
		},
	}
	skipped := &mockMatcher{
		name:      "never",
		appliesFn: func(string) bool { return false },
		matchFn: func(string) []RawMention {
			t.Fatal("matcher must not run when it does not apply")
			return nil
		},
	}
	ext := newTestExtractor(t, WithMatcher(vitals), WithMatcher(skipped), WithMatcher(nil))

	res, err := ext.Extract(context.Background(), clinical.Document{Text: "Fever. BP 120/80"})
	require.NoError(t, err)
	require.Len(t, res.Mentions, 2)
	assert.Equal(t, "FEVER", res.Mentions[0].Normalized)
	assert.Equal(t, "BLOOD_PRESSURE", res.Mentions[1].Normalized)
	assert.Equal(t, "vitals", res.Mentions[1].ExtractionSource)

	names := ext.Matchers()
	assert.Equal(t, []string{"vitals", "never"}, names[len(names)-2:])
}

func TestExtract_Deterministic(t *testing.T) {
	ext := newTestExtractor(t)
	doc := clinical.Document{Text: sampleClinicalNote + sampleLabReport}

	first, err := ext.Extract(context.Background(), doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ext.Extract(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, first.Mentions, again.Mentions)
	}
}

func TestNewExtractor_InvalidConfig(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.NegationWindow = -1
	_, err := NewExtractor(cfg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtractorConfigInvalid))

	cfg = DefaultExtractorConfig()
	cfg.Vocabulary.LabPatterns = []LabPattern{{Name: "k", Pattern: `(potassium)`}}
	_, err = NewExtractor(cfg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLabPatternInvalid))
}

// =========================================================================
// ExtractBatch
// =========================================================================

func TestExtractBatch_PreservesOrder(t *testing.T) {
	metrics := &mockMetrics{}
	ext := newTestExtractor(t, WithMetrics(metrics))

	docs := make([]clinical.Document, 20)
	for i := range docs {
		docs[i] = clinical.Document{Text: "Patient reports fever.", Source: fmt.Sprintf("doc-%02d.txt", i)}
	}

	results, err := ext.ExtractBatch(context.Background(), docs, 3)
	require.NoError(t, err)
	require.Len(t, results, len(docs))
	for i, r := range results {
		assert.Equal(t, docs[i].Source, r.Source)
		require.Len(t, r.Mentions, 1)
		assert.Equal(t, docs[i].Source, r.Mentions[0].Source)
	}
	assert.Len(t, metrics.counts, len(docs))
}

func TestExtractBatch_Empty(t *testing.T) {
	ext := newTestExtractor(t)
	results, err := ext.ExtractBatch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExtractBatch_Cancelled(t *testing.T) {
	ext := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ext.ExtractBatch(ctx, []clinical.Document{{Text: "fever"}, {Text: "cough"}}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

//Personal.AI order the ending
