package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// TextExtractor pulls raw text out of one file format. PDF and image OCR
// backends plug in here; plain text is built in.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// TextExtractorFunc adapts a function to TextExtractor.
type TextExtractorFunc func(ctx context.Context, path string) (string, error)

func (f TextExtractorFunc) ExtractText(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// SkipRecorder observes rejected inputs.
type SkipRecorder interface {
	RecordDocumentSkipped(reason string)
}

// Skip reasons.
const (
	SkipReadFailed  = "read_failed"
	SkipTooShort    = "too_short"
	SkipUnsupported = "unsupported_format"
)

// plainText reads UTF-8 text, dropping invalid byte sequences.
type plainText struct{}

func (plainText) ExtractText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// Loader reads files into Documents. A file that cannot be turned into a
// document is skipped and reported; it never stops the batch.
type Loader struct {
	extractors map[string]TextExtractor
	logger     logging.Logger
	skips      SkipRecorder
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtractor registers te for a file extension such as ".pdf".
func WithExtractor(ext string, te TextExtractor) Option {
	return func(l *Loader) {
		if te != nil {
			l.extractors[strings.ToLower(ext)] = te
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSkipRecorder sets the observer for skipped inputs.
func WithSkipRecorder(r SkipRecorder) Option {
	return func(l *Loader) { l.skips = r }
}

// NewLoader returns a Loader that handles .txt files plus any registered
// extractors.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		extractors: map[string]TextExtractor{".txt": plainText{}},
		logger:     logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Supports reports whether the file extension of path has an extractor.
func (l *Loader) Supports(path string) bool {
	_, ok := l.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads every path in order. Directories expand to their supported
// files in name order. Skipped inputs are returned as errors alongside the
// documents that loaded.
func (l *Loader) Load(ctx context.Context, paths []string) ([]clinical.Document, []error) {
	docs := make([]clinical.Document, 0, len(paths))
	var errs []error

	for _, path := range l.expand(paths, &errs) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		doc, err := l.loadFile(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func (l *Loader) expand(paths []string, errs *[]error) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			*errs = append(*errs, l.skip(SkipReadFailed,
				errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to list directory").WithDetail(p)))
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && l.Supports(e.Name()) {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out
}

func (l *Loader) loadFile(ctx context.Context, path string) (clinical.Document, error) {
	te, ok := l.extractors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return clinical.Document{}, l.skip(SkipUnsupported,
			errors.New(errors.ErrCodeUnsupportedFormat, "no extractor for file type").WithDetail(path))
	}

	raw, err := te.ExtractText(ctx, path)
	if err != nil {
		return clinical.Document{}, l.skip(SkipReadFailed,
			errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to read document").WithDetail(path))
	}

	doc, err := Prepare(filepath.Base(path), raw)
	if err != nil {
		return clinical.Document{}, l.skip(SkipTooShort, err)
	}
	l.logger.Debug("document loaded",
		logging.Source(doc.Source),
		logging.DocType(doc.DocType),
		logging.Int("chars", len(doc.Text)))
	return doc, nil
}

func (l *Loader) skip(reason string, err error) error {
	l.logger.Warn("document skipped", logging.String("reason", reason), logging.Err(err))
	if l.skips != nil {
		l.skips.RecordDocumentSkipped(reason)
	}
	return err
}

// Prepare builds a Document from raw text: it rejects text shorter than
// MinTextLength after trimming, then cleans it and infers date and type.
func Prepare(source, raw string) (clinical.Document, error) {
	if len([]rune(strings.TrimSpace(raw))) < MinTextLength {
		return clinical.Document{}, errors.Newf(errors.ErrCodeDocumentTooShort,
			"document text shorter than %d characters", MinTextLength).WithDetail(source)
	}
	text := Clean(raw)
	return clinical.Document{
		Text:    text,
		Date:    ExtractDate(text),
		Source:  source,
		DocType: InferDocType(text),
	}, nil
}

// LoadTextFiles loads .txt files with a default Loader.
func LoadTextFiles(ctx context.Context, paths []string) ([]clinical.Document, []error) {
	return NewLoader().Load(ctx, paths)
}

//Personal.AI order the ending
