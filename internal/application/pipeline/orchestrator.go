package pipeline

import (
	"context"
	"time"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/temporal"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// Config holds orchestration switches.
type Config struct {
	// PropagateDates gives undated documents the first dated document's date.
	PropagateDates bool `mapstructure:"propagate_dates" yaml:"propagate_dates"`
	// Concurrency bounds extraction fan-out. Zero uses the extractor default.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// Orchestrator runs the pipeline steps in order over one PipelineState.
type Orchestrator struct {
	cfg        Config
	loader     DocumentLoader
	extractor  clinical_nlp.Extractor
	timeline   *temporal.Builder
	assembler  *rag_prep.Assembler
	validator  EntityValidator
	summarizer ResidualSummarizer
	results    ResultSink
	chunks     ChunkSink
	metrics    Metrics
	logger     logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets orchestration switches.
func WithConfig(cfg Config) Option { return func(o *Orchestrator) { o.cfg = cfg } }

// WithLoader sets the document loader used by Run.
func WithLoader(l DocumentLoader) Option { return func(o *Orchestrator) { o.loader = l } }

// WithValidator enables the validation step.
func WithValidator(v EntityValidator) Option { return func(o *Orchestrator) { o.validator = v } }

// WithSummarizer replaces the default NopSummarizer.
func WithSummarizer(s ResidualSummarizer) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.summarizer = s
		}
	}
}

// WithResultSink persists per-document results.
func WithResultSink(s ResultSink) Option { return func(o *Orchestrator) { o.results = s } }

// WithChunkSink publishes chunks after assembly.
func WithChunkSink(s ChunkSink) Option { return func(o *Orchestrator) { o.chunks = s } }

// WithMetrics sets the run observer.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator wires the core stages. extractor, timeline and assembler
// are required.
func NewOrchestrator(extractor clinical_nlp.Extractor, timeline *temporal.Builder, assembler *rag_prep.Assembler, opts ...Option) (*Orchestrator, error) {
	if extractor == nil || timeline == nil || assembler == nil {
		return nil, errors.New(errors.ErrCodePipelineStepFailed, "extractor, timeline builder and assembler are required")
	}
	o := &Orchestrator{
		extractor:  extractor,
		timeline:   timeline,
		assembler:  assembler,
		summarizer: NopSummarizer{},
		metrics:    nopMetrics{},
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run ingests paths with the configured loader and processes the documents.
// The returned error is non-nil only when the run could not proceed at all;
// per-step failures are in the state.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*PipelineState, error) {
	state := NewState(paths)
	if o.loader == nil {
		return state, errors.New(errors.ErrCodePipelineStepFailed, "no document loader configured")
	}
	o.runIngestion(ctx, state)
	return state, o.process(ctx, state)
}

// RunDocuments processes already ingested documents.
func (o *Orchestrator) RunDocuments(ctx context.Context, docs []clinical.Document) (*PipelineState, error) {
	state := NewState(nil)
	state.Documents = append(state.Documents, docs...)
	return state, o.process(ctx, state)
}

func (o *Orchestrator) process(ctx context.Context, s *PipelineState) (err error) {
	log := o.logger.With(logging.RunID(s.RunID))
	done := o.metrics.StartRun()
	defer func() { done(err == nil) }()

	if len(s.Documents) == 0 {
		err = errors.New(errors.ErrCodeNoDocuments, "no documents to process")
		o.addError(s, StepExtraction, "", err)
		return err
	}

	if err = o.runExtraction(ctx, s, log); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	o.runTimeline(s, log)
	o.runChunking(s, log)
	o.runPublish(ctx, s, log)

	log.Info("pipeline run finished",
		logging.Int("documents", len(s.Documents)),
		logging.Int("mentions", len(s.Mentions)),
		logging.Int("chunks", len(s.Chunks)),
		logging.Int("errors", len(s.Errors)))
	return nil
}

func (o *Orchestrator) runIngestion(ctx context.Context, s *PipelineState) {
	start := time.Now()
	s.CurrentStep = StepIngestion
	docs, errs := o.loader.Load(ctx, s.FilePaths)
	for _, err := range errs {
		o.addError(s, StepIngestion, "", err)
	}
	s.Documents = docs
	logging.LogStepDuration(o.logger, StepIngestion, start,
		logging.RunID(s.RunID), logging.Int("documents", len(docs)), logging.Int("skipped", len(errs)))
}

func (o *Orchestrator) runExtraction(ctx context.Context, s *PipelineState, log logging.Logger) error {
	start := time.Now()
	s.CurrentStep = StepExtraction

	if o.cfg.PropagateDates {
		s.CanonicalDate = propagateDates(s.Documents)
	}

	extracted, err := o.extractor.ExtractBatch(ctx, s.Documents, o.cfg.Concurrency)
	if err != nil {
		o.addError(s, StepExtraction, "", err)
		return err
	}

	for i, doc := range s.Documents {
		res := extracted[i]
		s.DocTypes[doc.Source] = res.DocType

		kept := o.validate(ctx, s, doc.Source, res.Mentions)
		residual := clinical_nlp.BuildResidualText(doc.Text, kept)
		conclusion, serr := o.summarizer.Summarize(ctx, residual)
		if serr != nil {
			o.addError(s, StepResults, doc.Source, serr)
			conclusion = NoSignificantComments
		}

		docType := doc.DocType
		if docType == "" {
			docType = res.DocType
		}
		result := clinical.DocumentResult{
			DocMetadata:    clinical.DocMetadata{Source: doc.Source, Date: doc.Date, DocType: docType},
			Entities:       kept,
			ResidualText:   residual,
			ConclusionText: conclusion,
		}
		s.Results = append(s.Results, result)
		s.Mentions = append(s.Mentions, kept...)

		if o.results != nil {
			if loc, serr := o.results.Save(ctx, result); serr != nil {
				o.addError(s, StepResults, doc.Source, serr)
			} else {
				log.Debug("result saved", logging.Source(doc.Source), logging.String("location", loc))
			}
		}
	}

	o.metrics.RecordMentions(s.Mentions)
	logging.LogStepDuration(log, StepExtraction, start, logging.Int("mentions", len(s.Mentions)))
	return nil
}

// validate runs the optional validator. Mentions pass unchanged when it
// fails; corrected entities are re-normalized.
func (o *Orchestrator) validate(ctx context.Context, s *PipelineState, source string, mentions []clinical.EntityMention) []clinical.EntityMention {
	if o.validator == nil || len(mentions) == 0 {
		return mentions
	}
	s.CurrentStep = StepValidation
	kept, err := o.validator.Validate(ctx, mentions)
	s.CurrentStep = StepExtraction
	if err != nil {
		o.addError(s, StepValidation, source, err)
		return mentions
	}
	for i := range kept {
		kept[i].Normalized = clinical_nlp.Normalize(kept[i].Entity)
	}
	return kept
}

func (o *Orchestrator) runTimeline(s *PipelineState, log logging.Logger) {
	start := time.Now()
	s.CurrentStep = StepTimeline
	s.Timeline = o.timeline.Build(s.Mentions)
	o.metrics.RecordTimeline(s.Timeline)
	logging.LogStepDuration(log, StepTimeline, start,
		logging.Int("progressions", len(s.Timeline.Progressions)),
		logging.Int("conflicts", len(s.Timeline.Conflicts)))
}

func (o *Orchestrator) runChunking(s *PipelineState, log logging.Logger) {
	start := time.Now()
	s.CurrentStep = StepChunking
	s.Chunks = o.assembler.AssembleBySource(s.Mentions, s.DocTypes)
	o.metrics.RecordChunks(s.Chunks)
	logging.LogStepDuration(log, StepChunking, start, logging.Int("chunks", len(s.Chunks)))
}

func (o *Orchestrator) runPublish(ctx context.Context, s *PipelineState, log logging.Logger) {
	if o.chunks == nil || len(s.Chunks) == 0 {
		return
	}
	start := time.Now()
	s.CurrentStep = StepPublish
	if err := o.chunks.PublishChunks(ctx, s.Chunks); err != nil {
		o.addError(s, StepPublish, "", err)
		return
	}
	logging.LogStepDuration(log, StepPublish, start, logging.Int("chunks", len(s.Chunks)))
}

func (o *Orchestrator) addError(s *PipelineState, step, source string, err error) {
	s.AddError(step, source, err)
	o.metrics.RecordStepError(step)
	o.logger.Warn("pipeline step error",
		logging.RunID(s.RunID), logging.Step(step), logging.Source(source), logging.Err(err))
}

// propagateDates copies the first dated document's date onto undated
// documents and returns it.
func propagateDates(docs []clinical.Document) *string {
	var canonical *string
	for _, d := range docs {
		if d.Date != nil {
			canonical = d.Date
			break
		}
	}
	if canonical == nil {
		return nil
	}
	for i := range docs {
		if docs[i].Date == nil {
			docs[i].Date = clinical.StringPtr(*canonical)
		}
	}
	return clinical.StringPtr(*canonical)
}

//Personal.AI order the ending
