package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/ingestion"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/temporal"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// =========================================================================
// Mocks
// =========================================================================

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, mentions []clinical.EntityMention) ([]clinical.EntityMention, error) {
	args := m.Called(ctx, mentions)
	out, _ := args.Get(0).([]clinical.EntityMention)
	return out, args.Error(1)
}

type recordingResultSink struct {
	mu      sync.Mutex
	results []clinical.DocumentResult
	err     error
}

func (s *recordingResultSink) Save(_ context.Context, r clinical.DocumentResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.results = append(s.results, r)
	return "mem://" + r.DocMetadata.Source, nil
}

type recordingChunkSink struct {
	chunks []clinical.Chunk
	err    error
}

func (s *recordingChunkSink) PublishChunks(_ context.Context, chunks []clinical.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

type recordingMetrics struct {
	mentions   int
	chunks     int
	stepErrors []string
	runs       []bool
}

func (m *recordingMetrics) RecordMentions(ms []clinical.EntityMention) { m.mentions += len(ms) }
func (m *recordingMetrics) RecordTimeline(clinical.Timeline)           {}
func (m *recordingMetrics) RecordChunks(cs []clinical.Chunk)           { m.chunks += len(cs) }
func (m *recordingMetrics) RecordStepError(step string)                { m.stepErrors = append(m.stepErrors, step) }
func (m *recordingMetrics) StartRun() func(bool) {
	return func(ok bool) { m.runs = append(m.runs, ok) }
}

// =========================================================================
// Fixtures
// =========================================================================

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	ext, err := clinical_nlp.NewExtractor(clinical_nlp.DefaultExtractorConfig())
	require.NoError(t, err)
	asm, err := rag_prep.NewAssembler(rag_prep.DefaultOptions())
	require.NoError(t, err)
	o, err := NewOrchestrator(ext, temporal.NewBuilder(), asm, opts...)
	require.NoError(t, err)
	return o
}

func followUpDocs() []clinical.Document {
	return []clinical.Document{
		{
			Text:   "Patient reports fever and cough.\nHemoglobin: 10.2 g/dL",
			Date:   clinical.StringPtr("2024-01-10"),
			Source: "visit_1.txt",
		},
		{
			Text:   "No fever today.\nHemoglobin: 8.1 g/dL",
			Date:   clinical.StringPtr("2024-02-10"),
			Source: "visit_2.txt",
		},
	}
}

func findProgression(tl clinical.Timeline, entity string) (clinical.Progression, bool) {
	for _, p := range tl.Progressions {
		if p.Entity == entity {
			return p, true
		}
	}
	return clinical.Progression{}, false
}

func hasNormalized(mentions []clinical.EntityMention, id string) bool {
	for _, m := range mentions {
		if m.Normalized == id {
			return true
		}
	}
	return false
}

// =========================================================================
// Construction
// =========================================================================

func TestNewOrchestrator_RequiresCoreStages(t *testing.T) {
	asm, err := rag_prep.NewAssembler(rag_prep.DefaultOptions())
	require.NoError(t, err)

	_, err = NewOrchestrator(nil, temporal.NewBuilder(), asm)
	assert.True(t, errors.IsCode(err, errors.ErrCodePipelineStepFailed))
}

func TestRun_WithoutLoader(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Run(context.Background(), []string{"a.txt"})
	assert.True(t, errors.IsCode(err, errors.ErrCodePipelineStepFailed))
}

// =========================================================================
// RunDocuments
// =========================================================================

func TestRunDocuments_EndToEnd(t *testing.T) {
	results := &recordingResultSink{}
	chunks := &recordingChunkSink{}
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(t, WithResultSink(results), WithChunkSink(chunks), WithMetrics(metrics))

	state, err := o.RunDocuments(context.Background(), followUpDocs())
	require.NoError(t, err)
	assert.Empty(t, state.Errors)
	assert.NotEmpty(t, state.RunID)

	require.Len(t, state.Results, 2)
	assert.Equal(t, "visit_1.txt", state.Results[0].DocMetadata.Source)
	assert.Equal(t, clinical.DocTypeClinicalNote, state.Results[0].DocMetadata.DocType)
	assert.Len(t, results.results, 2)

	assert.True(t, hasNormalized(state.Mentions, "FEVER"))
	assert.True(t, hasNormalized(state.Mentions, "HEMOGLOBIN"))
	assert.Equal(t, clinical.DocTypeClinicalNote, state.DocTypes["visit_2.txt"])

	hb, ok := findProgression(state.Timeline, "HEMOGLOBIN")
	require.True(t, ok)
	assert.Equal(t, clinical.PatternDecreasing, hb.Pattern)
	assert.Equal(t, []float64{10.2, 8.1}, hb.Values)

	fever, ok := findProgression(state.Timeline, "FEVER")
	require.True(t, ok)
	assert.Equal(t, clinical.PatternRecurrent, fever.Pattern)

	require.Len(t, state.Timeline.Conflicts, 1)
	assert.Equal(t, "FEVER", state.Timeline.Conflicts[0].Entity)
	assert.Equal(t, clinical.IssueNegationConflict, state.Timeline.Conflicts[0].Issue)

	require.NotEmpty(t, state.Chunks)
	assert.Equal(t, state.Chunks, chunks.chunks)
	for _, c := range state.Chunks {
		assert.Equal(t, clinical.DocTypeClinicalNote, c.Metadata.DocType)
	}

	assert.Equal(t, len(state.Mentions), metrics.mentions)
	assert.Equal(t, len(state.Chunks), metrics.chunks)
	assert.Equal(t, []bool{true}, metrics.runs)
}

func TestRunDocuments_NoDocuments(t *testing.T) {
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(t, WithMetrics(metrics))

	state, err := o.RunDocuments(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoDocuments))
	assert.Len(t, state.ErrorsFor(StepExtraction), 1)
	assert.Equal(t, []bool{false}, metrics.runs)
}

func TestRunDocuments_CancelledContext(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RunDocuments(ctx, followUpDocs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDocuments_PropagateDates(t *testing.T) {
	docs := followUpDocs()
	docs[1].Date = nil
	o := newTestOrchestrator(t, WithConfig(Config{PropagateDates: true}))

	state, err := o.RunDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", clinical.Deref(state.CanonicalDate))
	assert.Equal(t, "2024-01-10", clinical.Deref(state.Results[1].DocMetadata.Date))
	for _, m := range state.Mentions {
		assert.Equal(t, "2024-01-10", clinical.Deref(m.Date), m.Normalized)
	}
}

func TestRunDocuments_DatesNotPropagatedByDefault(t *testing.T) {
	docs := followUpDocs()
	docs[1].Date = nil
	o := newTestOrchestrator(t)

	state, err := o.RunDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Nil(t, state.CanonicalDate)
	assert.Nil(t, state.Results[1].DocMetadata.Date)
}

func TestRunDocuments_ValidatorDropsAndCorrects(t *testing.T) {
	dropCough := validatorFunc(func(_ context.Context, in []clinical.EntityMention) ([]clinical.EntityMention, error) {
		out := make([]clinical.EntityMention, 0, len(in))
		for _, m := range in {
			switch m.Normalized {
			case "COUGH":
				continue
			case "FEVER":
				m.Entity = "pyrexia"
			}
			out = append(out, m)
		}
		return out, nil
	})
	o := newTestOrchestrator(t, WithValidator(dropCough))

	state, err := o.RunDocuments(context.Background(), followUpDocs()[:1])
	require.NoError(t, err)
	assert.False(t, hasNormalized(state.Mentions, "COUGH"))
	assert.False(t, hasNormalized(state.Mentions, "FEVER"))
	assert.True(t, hasNormalized(state.Mentions, "PYREXIA"))
	assert.Equal(t, state.Mentions, state.Results[0].Entities)
}

func TestRunDocuments_ValidatorFailureKeepsMentions(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, mock.Anything).Return(nil, stderrors.New("remote down"))
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(t, WithValidator(v), WithMetrics(metrics))

	state, err := o.RunDocuments(context.Background(), followUpDocs())
	require.NoError(t, err)
	assert.Len(t, state.ErrorsFor(StepValidation), 2)
	assert.True(t, hasNormalized(state.Mentions, "COUGH"))
	assert.Equal(t, []string{StepValidation, StepValidation}, metrics.stepErrors)
	v.AssertNumberOfCalls(t, "Validate", 2)
}

func TestRunDocuments_GuardedDenyList(t *testing.T) {
	doc := clinical.Document{
		Text:   "Hemoglobin: 9.4 g/dL\nComplains of headache.",
		Date:   clinical.StringPtr("2024-03-01"),
		Source: "ward.txt",
	}
	deny := NewDenyListValidator(append(DefaultDenyList, "headache"))
	o := newTestOrchestrator(t, WithValidator(NewGuardedValidator(deny, DefaultGuardConfig())))

	state, err := o.RunDocuments(context.Background(), []clinical.Document{doc})
	require.NoError(t, err)
	assert.Empty(t, state.Errors)
	assert.False(t, hasNormalized(state.Mentions, "HEADACHE"))
	assert.True(t, hasNormalized(state.Mentions, "HEMOGLOBIN"))
}

func TestRunDocuments_SinkFailuresAreRecorded(t *testing.T) {
	results := &recordingResultSink{err: errors.New(errors.ErrCodeStorageError, "disk full")}
	chunks := &recordingChunkSink{err: errors.New(errors.ErrCodeMessagingError, "broker down")}
	o := newTestOrchestrator(t, WithResultSink(results), WithChunkSink(chunks))

	state, err := o.RunDocuments(context.Background(), followUpDocs())
	require.NoError(t, err)
	assert.Len(t, state.ErrorsFor(StepResults), 2)
	require.Len(t, state.ErrorsFor(StepPublish), 1)
	assert.True(t, errors.IsCode(state.ErrorsFor(StepPublish)[0], errors.ErrCodeMessagingError))
	assert.Len(t, state.Results, 2)
	assert.NotEmpty(t, state.Chunks)
}

func TestRunDocuments_SummarizerFailureFallsBack(t *testing.T) {
	failing := summarizerFunc(func(context.Context, string) (string, error) {
		return "", stderrors.New("model unavailable")
	})
	o := newTestOrchestrator(t, WithSummarizer(failing))

	state, err := o.RunDocuments(context.Background(), followUpDocs()[:1])
	require.NoError(t, err)
	assert.Equal(t, NoSignificantComments, state.Results[0].ConclusionText)
	assert.Len(t, state.ErrorsFor(StepResults), 1)
}

// =========================================================================
// Run
// =========================================================================

func TestRun_LoadsFilesAndRecordsSkips(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"),
		[]byte("Date: 14/08/2024\nPatient complains of chest pain and fatigue."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.txt"), []byte("short"), 0o644))

	o := newTestOrchestrator(t, WithLoader(ingestion.NewLoader()))
	state, err := o.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	require.Len(t, state.Documents, 1)
	assert.Equal(t, "2024-08-14", clinical.Deref(state.Documents[0].Date))
	assert.True(t, hasNormalized(state.Mentions, "CHEST_PAIN"))

	skips := state.ErrorsFor(StepIngestion)
	require.Len(t, skips, 1)
	assert.True(t, errors.IsCode(skips[0], errors.ErrCodeDocumentTooShort))
}

func TestRun_AllInputsSkipped(t *testing.T) {
	o := newTestOrchestrator(t, WithLoader(ingestion.NewLoader()))
	state, err := o.Run(context.Background(), []string{filepath.Join(t.TempDir(), "scan.pdf")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoDocuments))
	assert.Len(t, state.ErrorsFor(StepIngestion), 1)
}

// =========================================================================
// Helpers
// =========================================================================

func TestPropagateDates(t *testing.T) {
	assert.Nil(t, propagateDates([]clinical.Document{{Text: "a"}}))

	docs := []clinical.Document{{Text: "a"}, {Text: "b", Date: clinical.StringPtr("2024-05-01")}, {Text: "c"}}
	got := propagateDates(docs)
	assert.Equal(t, "2024-05-01", clinical.Deref(got))
	for _, d := range docs {
		assert.Equal(t, "2024-05-01", clinical.Deref(d.Date))
	}
}

type validatorFunc func(context.Context, []clinical.EntityMention) ([]clinical.EntityMention, error)

func (f validatorFunc) Validate(ctx context.Context, m []clinical.EntityMention) ([]clinical.EntityMention, error) {
	return f(ctx, m)
}

type summarizerFunc func(context.Context, string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, r string) (string, error) { return f(ctx, r) }

//Personal.AI order the ending
