package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

const extractionKeyPrefix = "extract:"

// CacheRecorder observes cache hits and misses.
type CacheRecorder interface {
	RecordCacheAccess(hit bool)
}

// CachedExtractor memoizes Extract results in a Cache. Cache failures are
// logged and the wrapped extractor serves the call.
type CachedExtractor struct {
	inner       clinical_nlp.Extractor
	cache       Cache
	ttl         time.Duration
	fingerprint string
	concurrency int
	logger      logging.Logger
	recorder    CacheRecorder
}

// CachedExtractorOption configures a CachedExtractor.
type CachedExtractorOption func(*CachedExtractor)

// WithFingerprint mixes fp into every key so that a vocabulary or config
// change never serves stale results.
func WithFingerprint(fp string) CachedExtractorOption {
	return func(c *CachedExtractor) { c.fingerprint = fp }
}

func WithResultTTL(ttl time.Duration) CachedExtractorOption {
	return func(c *CachedExtractor) { c.ttl = ttl }
}

func WithCacheRecorder(r CacheRecorder) CachedExtractorOption {
	return func(c *CachedExtractor) { c.recorder = r }
}

func WithCacheLogger(l logging.Logger) CachedExtractorOption {
	return func(c *CachedExtractor) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBatchConcurrency bounds ExtractBatch when the caller passes zero.
func WithBatchConcurrency(n int) CachedExtractorOption {
	return func(c *CachedExtractor) { c.concurrency = n }
}

// NewCachedExtractor wraps inner. The default fingerprint is the matcher
// list of inner.
func NewCachedExtractor(inner clinical_nlp.Extractor, cache Cache, opts ...CachedExtractorOption) *CachedExtractor {
	c := &CachedExtractor{
		inner:       inner,
		cache:       cache,
		fingerprint: strings.Join(inner.Matchers(), ","),
		concurrency: 4,
		logger:      logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the cache key for doc.
func (c *CachedExtractor) Key(doc clinical.Document) string {
	h := sha256.New()
	for _, part := range []string{c.fingerprint, doc.Source, clinical.Deref(doc.Date), doc.DocType, doc.Section, doc.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return extractionKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedExtractor) Extract(ctx context.Context, doc clinical.Document) (*clinical_nlp.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		res     clinical_nlp.ExtractionResult
		loadErr error
	)
	hit, err := c.cache.GetOrSet(ctx, c.Key(doc), &res, c.ttl, func(ctx context.Context) (interface{}, error) {
		out, err := c.inner.Extract(ctx, doc)
		loadErr = err
		return out, err
	})
	if err == nil {
		c.record(hit)
		return &res, nil
	}
	if loadErr != nil {
		return nil, loadErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.Warn("extraction cache unavailable, extracting directly",
		logging.Source(doc.Source), logging.Err(err))
	c.record(false)
	return c.inner.Extract(ctx, doc)
}

// ExtractBatch extracts docs through the cache, keeping input order.
func (c *CachedExtractor) ExtractBatch(ctx context.Context, docs []clinical.Document, concurrency int) ([]*clinical_nlp.ExtractionResult, error) {
	if concurrency <= 0 {
		concurrency = c.concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]*clinical_nlp.ExtractionResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range docs {
		idx := i
		g.Go(func() error {
			res, err := c.Extract(gctx, docs[idx])
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

func (c *CachedExtractor) Matchers() []string { return c.inner.Matchers() }

func (c *CachedExtractor) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheAccess(hit)
	}
}

//Personal.AI order the ending
