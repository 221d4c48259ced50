// Package clinical_nlp extracts clinical entity mentions from free text using
// keyword vocabularies, structured lab patterns and a line heuristic for
// tabular lab reports. Every mention carries a negation flag, a context
// window and a normalized identifier. No statistical model is involved, so the
// same input always yields the same mentions in the same order.
package clinical_nlp

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ExtractorConfig holds tuneable parameters for extraction.
type ExtractorConfig struct {
	NegationWindow    int        `json:"negation_window" yaml:"negation_window"`
	ContextWindow     int        `json:"context_window" yaml:"context_window"`
	EnableLineMatcher bool       `json:"enable_line_matcher" yaml:"enable_line_matcher"`
	BatchConcurrency  int        `json:"batch_concurrency" yaml:"batch_concurrency"`
	Vocabulary        Vocabulary `json:"vocabulary" yaml:"vocabulary"`
}

// DefaultExtractorConfig returns production-ready defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		NegationWindow:    DefaultNegationWindow,
		ContextWindow:     40,
		EnableLineMatcher: true,
		BatchConcurrency:  4,
		Vocabulary:        DefaultVocabulary(),
	}
}

// Validate rejects configurations the extractor cannot run with.
func (c ExtractorConfig) Validate() error {
	if c.NegationWindow < 0 {
		return errors.New(errors.ErrCodeExtractorConfigInvalid, "negation_window must not be negative")
	}
	if c.ContextWindow < 0 {
		return errors.New(errors.ErrCodeExtractorConfigInvalid, "context_window must not be negative")
	}
	return c.Vocabulary.Validate()
}

// ---------------------------------------------------------------------------
// Dependency interfaces
// ---------------------------------------------------------------------------

// Metrics records operational telemetry.
type Metrics interface {
	RecordExtraction(ctx context.Context, docType string, mentionCount int, durationMs float64)
}

// Logger is a minimal structured logger.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// ---------------------------------------------------------------------------
// Extractor interface
// ---------------------------------------------------------------------------

// ExtractionResult is the output for one document.
type ExtractionResult struct {
	Source           string                   `json:"source"`
	DocType          string                   `json:"doc_type"`
	Section          string                   `json:"section"`
	Mentions         []clinical.EntityMention `json:"mentions"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
}

// Extractor is the top-level API for clinical entity extraction.
type Extractor interface {
	Extract(ctx context.Context, doc clinical.Document) (*ExtractionResult, error)
	ExtractBatch(ctx context.Context, docs []clinical.Document, concurrency int) ([]*ExtractionResult, error)
	Matchers() []string
}

// Option customises an extractor at construction.
type Option func(*extractorImpl)

// WithMatcher appends a matcher after the built-in ones.
func WithMatcher(m Matcher) Option {
	return func(e *extractorImpl) {
		if m != nil {
			e.custom = append(e.custom, m)
		}
	}
}

// WithLogger sets the extractor logger.
func WithLogger(l Logger) Option {
	return func(e *extractorImpl) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the extractor metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *extractorImpl) {
		if m != nil {
			e.metrics = m
		}
	}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type extractorImpl struct {
	config   ExtractorConfig
	markers  []string
	matchers []Matcher
	custom   []Matcher
	metrics  Metrics
	logger   Logger
}

// NewExtractor builds an extractor from cfg. The returned value is immutable
// and safe for concurrent use.
func NewExtractor(cfg ExtractorConfig, opts ...Option) (Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &extractorImpl{
		config:  cfg,
		markers: cfg.Vocabulary.LabMarkers,
		metrics: noopMetrics{},
		logger:  noopLogger{},
	}

	cues := cfg.Vocabulary.NegationCues
	if len(cues) == 0 {
		cues = DefaultNegationCues
	}
	negation := NegationScanner{Window: cfg.NegationWindow, Cues: cues}

	for _, opt := range opts {
		opt(e)
	}

	labs, err := NewLabPatternMatcher(cfg.Vocabulary.LabPatterns, negation, cfg.ContextWindow)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLabPatternInvalid, "failed to compile lab patterns")
	}
	labs.AnyDocType = !cfg.EnableLineMatcher

	keyword := func(t clinical.EntityType) Matcher {
		return NewKeywordMatcher(t, cfg.Vocabulary.Keywords[t], negation, cfg.ContextWindow)
	}

	e.matchers = append(e.matchers,
		keyword(clinical.TypeSymptom),
		keyword(clinical.TypeCondition),
		labs,
	)
	if cfg.EnableLineMatcher {
		e.matchers = append(e.matchers,
			NewLineLabMatcher(cfg.Vocabulary.JunkPrefixes, cfg.Vocabulary.UnitCleanup, e.logger))
	}
	e.matchers = append(e.matchers,
		keyword(clinical.TypeMedication),
		keyword(clinical.TypeProcedure),
	)

	builtins := len(e.matchers)
	e.matchers = append(e.matchers, e.custom...)
	e.logger.Debug("clinical extractor ready",
		"builtin_matchers", builtins, "custom_matchers", len(e.custom))

	return e, nil
}

func (e *extractorImpl) Matchers() []string {
	names := make([]string, 0, len(e.matchers))
	for _, m := range e.matchers {
		names = append(names, m.Name())
	}
	return names
}

// ---------------------------------------------------------------------------
// Extract
// ---------------------------------------------------------------------------

func (e *extractorImpl) Extract(ctx context.Context, doc clinical.Document) (*ExtractionResult, error) {
	start := time.Now()

	docType := DetectDocType(doc.Text, e.markers)
	section := ResolveSection(doc, docType)
	result := &ExtractionResult{
		Source:   doc.Source,
		DocType:  docType,
		Section:  section,
		Mentions: []clinical.EntityMention{},
	}
	if doc.Text == "" {
		return result, nil
	}

	for _, m := range e.matchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !m.Applies(docType) {
			continue
		}
		for _, rm := range m.Match(doc.Text) {
			result.Mentions = append(result.Mentions, clinical.EntityMention{
				Entity:           rm.Entity,
				Normalized:       Normalize(rm.Entity),
				Type:             rm.Type,
				Value:            rm.Value,
				Unit:             rm.Unit,
				Negated:          rm.Negated,
				Context:          rm.Context,
				Date:             doc.Date,
				Source:           doc.Source,
				Section:          section,
				ExtractionSource: rm.Source,
			})
		}
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.metrics.RecordExtraction(ctx, docType, len(result.Mentions), float64(time.Since(start).Microseconds())/1000)
	e.logger.Debug("document extracted",
		"source", doc.Source, "doc_type", docType, "mentions", len(result.Mentions))
	return result, nil
}

// ---------------------------------------------------------------------------
// ExtractBatch
// ---------------------------------------------------------------------------

// ExtractBatch extracts every document with at most concurrency workers.
// Results keep the input order. A non-positive concurrency uses the
// configured BatchConcurrency.
func (e *extractorImpl) ExtractBatch(ctx context.Context, docs []clinical.Document, concurrency int) ([]*ExtractionResult, error) {
	if len(docs) == 0 {
		return []*ExtractionResult{}, nil
	}
	if concurrency <= 0 {
		concurrency = e.config.BatchConcurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*ExtractionResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range docs {
		idx := i
		g.Go(func() error {
			res, err := e.Extract(gctx, docs[idx])
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Noop implementations
// ---------------------------------------------------------------------------

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) RecordExtraction(context.Context, string, int, float64) {}

//Personal.AI order the ending
