package prometheus

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// Histogram bucket presets.
var (
	// ExtractionDurationBuckets in seconds; extraction is regex-bound and fast.
	ExtractionDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	// RunDurationBuckets in seconds for a full pipeline run.
	RunDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	// ChunkSizeBuckets in characters.
	ChunkSizeBuckets = []float64{50, 100, 250, 500, 1000, 1500, 2000}
	// MentionCountBuckets for mentions per document.
	MentionCountBuckets = []float64{0, 1, 5, 10, 25, 50, 100}
)

// Validator call outcomes.
const (
	ValidatorOutcomeOK          = "ok"
	ValidatorOutcomeError       = "error"
	ValidatorOutcomeBreakerOpen = "breaker_open"
	ValidatorOutcomeRateLimited = "rate_limited"
)

// PipelineMetrics is the metric set of the clinical pipeline.
type PipelineMetrics struct {
	DocumentsIngestedTotal CounterVec
	DocumentsSkippedTotal  CounterVec

	ExtractionDuration   HistogramVec
	MentionsPerDocument  HistogramVec
	MentionsTotal        CounterVec
	NegatedMentionsTotal CounterVec

	ProgressionsTotal CounterVec
	ConflictsTotal    CounterVec

	ChunksTotal    CounterVec
	ChunkSizeChars HistogramVec

	ValidatorCallsTotal CounterVec
	CacheAccessTotal    CounterVec
	MessagesTotal       CounterVec

	StepErrorsTotal CounterVec
	RunDuration     HistogramVec
	RunsInFlight    GaugeVec
}

// NewPipelineMetrics registers every pipeline metric on c.
func NewPipelineMetrics(c MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		DocumentsIngestedTotal: c.RegisterCounter("documents_ingested_total", "Documents loaded for processing", "doc_type"),
		DocumentsSkippedTotal:  c.RegisterCounter("documents_skipped_total", "Documents skipped at ingestion", "reason"),

		ExtractionDuration:   c.RegisterHistogram("extraction_duration_seconds", "Entity extraction latency per document", ExtractionDurationBuckets, "doc_type"),
		MentionsPerDocument:  c.RegisterHistogram("mentions_per_document", "Entity mentions per extracted document", MentionCountBuckets, "doc_type"),
		MentionsTotal:        c.RegisterCounter("mentions_total", "Entity mentions extracted", "type", "extraction_source"),
		NegatedMentionsTotal: c.RegisterCounter("negated_mentions_total", "Entity mentions flagged as negated", "type"),

		ProgressionsTotal: c.RegisterCounter("progressions_total", "Progressions detected in timelines", "pattern"),
		ConflictsTotal:    c.RegisterCounter("conflicts_total", "Negation conflicts detected in timelines", "issue"),

		ChunksTotal:    c.RegisterCounter("chunks_total", "Chunks assembled", "doc_type"),
		ChunkSizeChars: c.RegisterHistogram("chunk_size_chars", "Chunk text length in characters", ChunkSizeBuckets, "doc_type"),

		ValidatorCallsTotal: c.RegisterCounter("validator_calls_total", "Entity validator calls", "outcome"),
		CacheAccessTotal:    c.RegisterCounter("cache_access_total", "Extraction cache lookups", "result"),
		MessagesTotal:       c.RegisterCounter("messages_total", "Broker messages handled", "topic", "direction", "status"),

		StepErrorsTotal: c.RegisterCounter("step_errors_total", "Recoverable errors per pipeline step", "step"),
		RunDuration:     c.RegisterHistogram("run_duration_seconds", "Full pipeline run latency", RunDurationBuckets, "status"),
		RunsInFlight:    c.RegisterGauge("runs_in_flight", "Pipeline runs currently executing"),
	}
}

// RecordExtraction observes one document extraction.
func (m *PipelineMetrics) RecordExtraction(_ context.Context, docType string, mentionCount int, durationMs float64) {
	m.ExtractionDuration.WithLabelValues(docType).Observe(durationMs / 1000)
	m.MentionsPerDocument.WithLabelValues(docType).Observe(float64(mentionCount))
	m.DocumentsIngestedTotal.WithLabelValues(docType).Inc()
}

// RecordDocumentSkipped counts a document rejected at ingestion.
func (m *PipelineMetrics) RecordDocumentSkipped(reason string) {
	m.DocumentsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordMentions counts mentions by type and extraction source.
func (m *PipelineMetrics) RecordMentions(mentions []clinical.EntityMention) {
	for _, mn := range mentions {
		m.MentionsTotal.WithLabelValues(string(mn.Type), string(mn.ExtractionSource)).Inc()
		if mn.Negated {
			m.NegatedMentionsTotal.WithLabelValues(string(mn.Type)).Inc()
		}
	}
}

// RecordTimeline counts progressions and conflicts.
func (m *PipelineMetrics) RecordTimeline(tl clinical.Timeline) {
	for _, p := range tl.Progressions {
		m.ProgressionsTotal.WithLabelValues(p.Pattern).Inc()
	}
	for _, c := range tl.Conflicts {
		m.ConflictsTotal.WithLabelValues(c.Issue).Inc()
	}
}

// RecordChunks counts chunks and observes their sizes.
func (m *PipelineMetrics) RecordChunks(chunks []clinical.Chunk) {
	for _, c := range chunks {
		m.ChunksTotal.WithLabelValues(c.Metadata.DocType).Inc()
		m.ChunkSizeChars.WithLabelValues(c.Metadata.DocType).Observe(float64(utf8.RuneCountInString(c.Text)))
	}
}

// RecordValidatorCall counts one validator outcome.
func (m *PipelineMetrics) RecordValidatorCall(outcome string) {
	m.ValidatorCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheAccess counts a cache hit or miss.
func (m *PipelineMetrics) RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheAccessTotal.WithLabelValues(result).Inc()
}

// RecordMessage counts a consumed or published broker message.
func (m *PipelineMetrics) RecordMessage(topic, direction string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesTotal.WithLabelValues(topic, direction, status).Inc()
}

// RecordStepError counts a recoverable step error.
func (m *PipelineMetrics) RecordStepError(step string) {
	m.StepErrorsTotal.WithLabelValues(step).Inc()
}

// StartRun marks a run in flight and returns the function that ends it.
func (m *PipelineMetrics) StartRun() func(ok bool) {
	start := time.Now()
	g := m.RunsInFlight.WithLabelValues()
	g.Inc()
	return func(ok bool) {
		g.Dec()
		status := "success"
		if !ok {
			status = "failure"
		}
		m.RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

//Personal.AI order the ending
