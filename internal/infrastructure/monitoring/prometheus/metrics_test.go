package prometheus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

func newTestPipelineMetrics(t *testing.T) (*PipelineMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewPipelineMetrics(c), c
}

func TestNewPipelineMetrics_AllRegistered(t *testing.T) {
	m, _ := newTestPipelineMetrics(t)
	require.NotNil(t, m)
	assert.NotNil(t, m.DocumentsIngestedTotal)
	assert.NotNil(t, m.ExtractionDuration)
	assert.NotNil(t, m.MentionsTotal)
	assert.NotNil(t, m.ChunksTotal)
	assert.NotNil(t, m.ValidatorCallsTotal)
	assert.NotNil(t, m.RunsInFlight)
}

func TestRecordExtraction(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordExtraction(context.Background(), clinical.DocTypeLabReport, 9, 12.5)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_documents_ingested_total{doc_type="lab_report"} 1`)
	assert.Contains(t, out, `test_unit_extraction_duration_seconds_sum{doc_type="lab_report"} 0.0125`)
	assert.Contains(t, out, `test_unit_mentions_per_document_sum{doc_type="lab_report"} 9`)
}

func TestRecordMentions(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordMentions([]clinical.EntityMention{
		{Normalized: "FEVER", Type: clinical.TypeSymptom, Negated: true, ExtractionSource: clinical.SourceKeyword},
		{Normalized: "COUGH", Type: clinical.TypeSymptom, ExtractionSource: clinical.SourceKeyword},
		{Normalized: "SGOT", Type: clinical.TypeLab, ExtractionSource: clinical.SourceLabLine},
	})

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_mentions_total{extraction_source="keyword",type="symptom"} 2`)
	assert.Contains(t, out, `test_unit_mentions_total{extraction_source="lab_line",type="lab"} 1`)
	assert.Contains(t, out, `test_unit_negated_mentions_total{type="symptom"} 1`)
}

func TestRecordTimelineAndChunks(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordTimeline(clinical.Timeline{
		Progressions: []clinical.Progression{{Entity: "FEVER", Pattern: clinical.PatternRecurrent}},
		Conflicts:    []clinical.Conflict{{Entity: "FEVER", Issue: clinical.IssueNegationConflict}},
	})
	m.RecordChunks([]clinical.Chunk{
		{Text: strings.Repeat("é", 120), Metadata: clinical.ChunkMetadata{DocType: clinical.DocTypeClinicalNote}},
	})

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_progressions_total{pattern="recurrent"} 1`)
	assert.Contains(t, out, `test_unit_conflicts_total{issue="negation_conflict"} 1`)
	assert.Contains(t, out, `test_unit_chunks_total{doc_type="clinical_note"} 1`)
	assert.Contains(t, out, `test_unit_chunk_size_chars_sum{doc_type="clinical_note"} 120`)
}

func TestRecordCounters(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordValidatorCall(ValidatorOutcomeBreakerOpen)
	m.RecordCacheAccess(true)
	m.RecordCacheAccess(false)
	m.RecordCacheAccess(false)
	m.RecordMessage("documents", "consume", nil)
	m.RecordMessage("chunks", "publish", errors.New("broker down"))
	m.RecordStepError("validate")
	m.RecordDocumentSkipped("too_short")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_validator_calls_total{outcome="breaker_open"} 1`)
	assert.Contains(t, out, `test_unit_cache_access_total{result="hit"} 1`)
	assert.Contains(t, out, `test_unit_cache_access_total{result="miss"} 2`)
	assert.Contains(t, out, `test_unit_messages_total{direction="consume",status="ok",topic="documents"} 1`)
	assert.Contains(t, out, `test_unit_messages_total{direction="publish",status="error",topic="chunks"} 1`)
	assert.Contains(t, out, `test_unit_step_errors_total{step="validate"} 1`)
	assert.Contains(t, out, `test_unit_documents_skipped_total{reason="too_short"} 1`)
}

func TestStartRun(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	done := m.StartRun()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_runs_in_flight 1")

	done(false)
	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_unit_runs_in_flight 0")
	assert.Contains(t, out, `test_unit_run_duration_seconds_count{status="failure"} 1`)
}

//Personal.AI order the ending
