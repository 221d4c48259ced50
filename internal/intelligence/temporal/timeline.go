// Package temporal orders entity mentions into a patient timeline and derives
// cross-document views from it: per-entity history, recurrence and lab trend
// progressions, and negation conflicts.
package temporal

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// DateLayout is the canonical mention date format.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{DateLayout, "2006-1-2"}

// Logger is a minimal structured logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}

// Options controls timeline construction.
type Options struct {
	// BucketByType groups by (normalized, type) instead of normalized alone,
	// so one id seen as two entity types yields two histories.
	BucketByType bool `json:"bucket_by_type" yaml:"bucket_by_type" mapstructure:"bucket_by_type"`
}

// Option customises a Builder.
type Option func(*Builder)

// WithBucketByType enables grouping by (normalized, type).
func WithBucketByType(enabled bool) Option {
	return func(b *Builder) { b.opts.BucketByType = enabled }
}

// WithLogger sets the builder logger.
func WithLogger(l Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder builds timelines. It holds no state between builds and is safe for
// concurrent use.
type Builder struct {
	opts   Options
	logger Logger
}

// NewBuilder returns a Builder with the given options applied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: noopLogger{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBuilderFromOptions returns a Builder configured from o.
func NewBuilderFromOptions(o Options, opts ...Option) *Builder {
	b := NewBuilder(opts...)
	b.opts = o
	return b
}

// Build orders mentions chronologically and derives history, progressions and
// conflicts. The input slice is not modified. Unparsable dates and values
// never fail the build.
func (b *Builder) Build(mentions []clinical.EntityMention) clinical.Timeline {
	ordered := OrderByDate(mentions)
	history := b.group(ordered)

	tl := clinical.Timeline{
		Timeline:      ordered,
		EntityHistory: history,
		Progressions:  []clinical.Progression{},
		Conflicts:     []clinical.Conflict{},
	}
	for _, key := range history.Keys() {
		events := history.Get(key)
		if p, ok := detectProgression(events); ok {
			tl.Progressions = append(tl.Progressions, p)
		}
		if c, ok := detectConflict(events); ok {
			tl.Conflicts = append(tl.Conflicts, c)
		}
	}

	b.logger.Debug("timeline built",
		"mentions", len(ordered),
		"entities", history.Len(),
		"progressions", len(tl.Progressions),
		"conflicts", len(tl.Conflicts))
	return tl
}

// ParseDate parses an ISO date; month and day may be unpadded ("2024-8-1").
// Missing or malformed dates report false.
func ParseDate(d *string) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(*d)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OrderByDate returns a stably sorted copy of mentions with unknown dates last.
func OrderByDate(mentions []clinical.EntityMention) []clinical.EntityMention {
	type dated struct {
		m     clinical.EntityMention
		at    time.Time
		known bool
	}
	rows := make([]dated, len(mentions))
	for i, m := range mentions {
		at, ok := ParseDate(m.Date)
		rows[i] = dated{m: m, at: at, known: ok}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.known && b.known:
			return a.at.Before(b.at)
		case a.known:
			return true
		default:
			return false
		}
	})

	out := make([]clinical.EntityMention, len(rows))
	for i, r := range rows {
		out[i] = r.m
	}
	return out
}

func (b *Builder) group(ordered []clinical.EntityMention) *clinical.EntityHistory {
	history := clinical.NewEntityHistory()
	for _, m := range ordered {
		history.Append(b.groupKey(m), m)
	}
	return history
}

func (b *Builder) groupKey(m clinical.EntityMention) string {
	if b.opts.BucketByType {
		return m.Normalized + ":" + string(m.Type)
	}
	return m.Normalized
}

func detectProgression(events []clinical.EntityMention) (clinical.Progression, bool) {
	if len(events) < 2 {
		return clinical.Progression{}, false
	}
	first := events[0]

	switch first.Type {
	case clinical.TypeSymptom, clinical.TypeCondition:
		dates := make([]*string, len(events))
		for i, e := range events {
			dates[i] = e.Date
		}
		return clinical.Progression{
			Entity:      first.Normalized,
			Type:        first.Type,
			Pattern:     clinical.PatternRecurrent,
			Occurrences: len(events),
			Dates:       dates,
		}, true

	case clinical.TypeLab:
		var values []float64
		var dates []*string
		for _, e := range events {
			if e.Value == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(*e.Value), 64)
			if err != nil {
				continue
			}
			values = append(values, v)
			dates = append(dates, e.Date)
		}
		if len(values) < 2 {
			return clinical.Progression{}, false
		}
		return clinical.Progression{
			Entity:  first.Normalized,
			Type:    clinical.TypeLab,
			Pattern: trend(values[0], values[len(values)-1]),
			Values:  values,
			Dates:   dates,
		}, true
	}
	return clinical.Progression{}, false
}

func trend(first, last float64) string {
	switch {
	case last > first:
		return clinical.PatternIncreasing
	case last < first:
		return clinical.PatternDecreasing
	default:
		return clinical.PatternStable
	}
}

func detectConflict(events []clinical.EntityMention) (clinical.Conflict, bool) {
	if len(events) < 2 {
		return clinical.Conflict{}, false
	}
	mixed := false
	for _, e := range events[1:] {
		if e.Negated != events[0].Negated {
			mixed = true
			break
		}
	}
	if !mixed {
		return clinical.Conflict{}, false
	}

	c := clinical.Conflict{
		Entity: events[0].Normalized,
		Issue:  clinical.IssueNegationConflict,
		Events: make([]clinical.ConflictEvent, len(events)),
	}
	for i, e := range events {
		c.Events[i] = clinical.ConflictEvent{Date: e.Date, Negated: e.Negated, Context: e.Context, Source: e.Source}
	}
	return c, true
}

//Personal.AI order the ending
