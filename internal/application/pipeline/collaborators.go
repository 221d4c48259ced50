package pipeline

import (
	"context"
	"strings"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// ============================================================================
// Collaborator interfaces
// ============================================================================

// DocumentLoader turns input paths into Documents, reporting skipped inputs.
type DocumentLoader interface {
	Load(ctx context.Context, paths []string) ([]clinical.Document, []error)
}

// EntityValidator keeps, drops or corrects mentions. Implementations may
// return corrected Entity values; the orchestrator re-normalizes them.
type EntityValidator interface {
	Validate(ctx context.Context, mentions []clinical.EntityMention) ([]clinical.EntityMention, error)
}

// ResidualSummarizer produces the conclusion text from residual text.
type ResidualSummarizer interface {
	Summarize(ctx context.Context, residual string) (string, error)
}

// ResultSink persists one per-document result and returns its location.
type ResultSink interface {
	Save(ctx context.Context, result clinical.DocumentResult) (string, error)
}

// ChunkSink hands chunks to embedding and vector-store consumers.
type ChunkSink interface {
	PublishChunks(ctx context.Context, chunks []clinical.Chunk) error
}

// Metrics observes a run.
type Metrics interface {
	RecordMentions(mentions []clinical.EntityMention)
	RecordTimeline(tl clinical.Timeline)
	RecordChunks(chunks []clinical.Chunk)
	RecordStepError(step string)
	StartRun() func(ok bool)
}

// ValidatorRecorder observes guarded validator outcomes.
type ValidatorRecorder interface {
	RecordValidatorCall(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordMentions([]clinical.EntityMention) {}
func (nopMetrics) RecordTimeline(clinical.Timeline)       {}
func (nopMetrics) RecordChunks([]clinical.Chunk)          {}
func (nopMetrics) RecordStepError(string)                 {}
func (nopMetrics) StartRun() func(bool)                   { return func(bool) {} }

// ============================================================================
// Defaults
// ============================================================================

// NoSignificantComments is the conclusion for residual text that carries
// nothing worth summarizing.
const NoSignificantComments = "No significant comments."

const minResidualLength = 10

// NopSummarizer returns NoSignificantComments for short residual text and
// the trimmed residual itself otherwise.
type NopSummarizer struct{}

func (NopSummarizer) Summarize(_ context.Context, residual string) (string, error) {
	if len([]rune(residual)) < minResidualLength {
		return NoSignificantComments, nil
	}
	return strings.TrimSpace(residual), nil
}

// DefaultDenyList holds administrative fields that the line matcher can pick
// up from report headers.
var DefaultDenyList = []string{
	"BED_NO", "BED_NUMBER", "PATIENT_ID", "UHID", "IPD_NO", "OPD_NO", "REG_NO", "LAB_NO", "SAMPLE_ID",
}

// DenyListValidator drops mentions whose normalized id is administrative.
type DenyListValidator struct {
	deny map[string]struct{}
}

// NewDenyListValidator builds a validator over ids. Ids are normalized.
func NewDenyListValidator(ids []string) *DenyListValidator {
	v := &DenyListValidator{deny: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if n := clinical_nlp.Normalize(id); n != "" {
			v.deny[n] = struct{}{}
		}
	}
	return v
}

func (v *DenyListValidator) Validate(ctx context.Context, mentions []clinical.EntityMention) ([]clinical.EntityMention, error) {
	if err := ctx.Err(); err != nil {
		return mentions, err
	}
	out := make([]clinical.EntityMention, 0, len(mentions))
	for _, m := range mentions {
		if _, drop := v.deny[m.Normalized]; drop {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

//Personal.AI order the ending
