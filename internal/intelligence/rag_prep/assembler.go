// Package rag_prep turns entity mentions into bounded, deduplicated text chunks
// with the metadata that embedding and vector-store consumers need.
package rag_prep

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// DefaultMaxChars bounds chunk text length in characters.
const DefaultMaxChars = 2000

// ChunkIDMode selects how the chunk id suffix is produced.
type ChunkIDMode string

const (
	// ChunkIDRandom appends 8 hex characters of a random UUID.
	ChunkIDRandom ChunkIDMode = "random"
	// ChunkIDContent appends 8 hex characters of a SHA-256 over the grouping
	// key and sorted entity list, so identical input yields identical ids.
	ChunkIDContent ChunkIDMode = "content"
)

const missingDate = "None"

const chunkIDSuffixLen = 8

// categoryRank orders snippets when CategoryFallback is set and they cannot
// all be placed by offset.
var categoryRank = map[clinical.EntityType]int{
	clinical.TypeSymptom:    0,
	clinical.TypeCondition:  1,
	clinical.TypeLab:        2,
	clinical.TypeProcedure:  3,
	clinical.TypeMedication: 4,
}

// Options controls chunk assembly.
type Options struct {
	MaxChars    int         `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
	ChunkIDMode ChunkIDMode `json:"chunk_id_mode" yaml:"chunk_id_mode" mapstructure:"chunk_id_mode"`
	// CategoryFallback orders a group by category rank when some context is
	// missing from the first mention's context. Meant for groups that mix
	// several document texts.
	CategoryFallback bool `json:"category_fallback" yaml:"category_fallback" mapstructure:"category_fallback"`
}

// DefaultOptions returns the default assembly options.
func DefaultOptions() Options {
	return Options{MaxChars: DefaultMaxChars, ChunkIDMode: ChunkIDRandom}
}

// Assembler builds chunks. It is safe for concurrent use.
type Assembler struct {
	opts  Options
	newID func() string
}

// Option customises an Assembler.
type Option func(*Assembler)

// WithIDGenerator replaces the random suffix source. The function must return
// at least 8 characters.
func WithIDGenerator(fn func() string) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// NewAssembler validates opts and returns an Assembler. Zero fields take
// their defaults.
func NewAssembler(opts Options, extra ...Option) (*Assembler, error) {
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxChars < 0 {
		return nil, errors.Newf(errors.ErrCodeChunkAssemblyFailed, "max_chars must be positive, got %d", opts.MaxChars)
	}
	switch opts.ChunkIDMode {
	case "":
		opts.ChunkIDMode = ChunkIDRandom
	case ChunkIDRandom, ChunkIDContent:
	default:
		return nil, errors.Newf(errors.ErrCodeChunkIDModeInvalid, "unsupported chunk_id_mode %q", opts.ChunkIDMode)
	}

	a := &Assembler{opts: opts, newID: randomSuffix}
	for _, o := range extra {
		o(a)
	}
	return a, nil
}

// groupKey identifies one chunk.
type groupKey struct {
	source  string
	date    string
	dated   bool
	section string
}

func keyOf(m clinical.EntityMention) groupKey {
	k := groupKey{source: m.Source, section: m.SectionOrDefault()}
	if m.Date != nil {
		k.date, k.dated = *m.Date, true
	}
	return k
}

func (k groupKey) String() string {
	date := missingDate
	if k.dated {
		date = k.date
	}
	return k.source + "_" + date + "_" + k.section
}

// Assemble groups mentions by (source, date, section) and emits one chunk per
// group in first-encounter order. Every chunk is tagged with docType.
func (a *Assembler) Assemble(mentions []clinical.EntityMention, docType string) []clinical.Chunk {
	return a.assemble(mentions, func(string) string { return docType })
}

// AssembleBySource is Assemble with the document type looked up per source.
// Sources absent from docTypes are tagged clinical_note.
func (a *Assembler) AssembleBySource(mentions []clinical.EntityMention, docTypes map[string]string) []clinical.Chunk {
	return a.assemble(mentions, func(source string) string {
		if dt, ok := docTypes[source]; ok && dt != "" {
			return dt
		}
		return clinical.DocTypeClinicalNote
	})
}

func (a *Assembler) assemble(mentions []clinical.EntityMention, docTypeOf func(string) string) []clinical.Chunk {
	var order []groupKey
	groups := make(map[groupKey][]clinical.EntityMention)
	for _, m := range mentions {
		k := keyOf(m)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], m)
	}

	chunks := make([]clinical.Chunk, 0, len(order))
	for _, k := range order {
		if c, ok := a.build(k, groups[k], docTypeOf(k.source)); ok {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

type snippet struct {
	text string
	typ  clinical.EntityType
}

func (a *Assembler) build(k groupKey, group []clinical.EntityMention, docType string) (clinical.Chunk, bool) {
	snippets := dedupContexts(group)
	if len(snippets) == 0 {
		return clinical.Chunk{}, false
	}
	orderSnippets(snippets, group[0].Context, a.opts.CategoryFallback)

	texts := make([]string, len(snippets))
	for i, s := range snippets {
		texts[i] = s.text
	}
	text := truncateRunes(strings.Join(texts, "\n"), a.opts.MaxChars)

	entities := newStringSet()
	types := newStringSet()
	negated := newStringSet()
	labs := []clinical.LabRecord{}
	for _, m := range group {
		entities.add(m.Normalized)
		types.add(string(m.Type))
		if m.Negated {
			negated.add(m.Normalized)
		}
		if m.Type == clinical.TypeLab {
			labs = append(labs, clinical.LabRecord{Lab: m.Normalized, Value: m.Value, Unit: m.Unit, Context: m.Context})
		}
	}

	sortedEntities := entities.sorted()
	entityTypes := make([]clinical.EntityType, 0, len(types))
	for _, t := range types.sorted() {
		entityTypes = append(entityTypes, clinical.EntityType(t))
	}

	var date *string
	if k.dated {
		d := k.date
		date = &d
	}

	return clinical.Chunk{
		ChunkID:     k.String() + "_" + a.suffix(k, sortedEntities),
		Text:        text,
		Entities:    sortedEntities,
		EntityTypes: entityTypes,
		Section:     k.section,
		Date:        date,
		Source:      k.source,
		Metadata: clinical.ChunkMetadata{
			DocType:         docType,
			NegatedEntities: negated.sorted(),
			Labs:            labs,
		},
	}, true
}

// dedupContexts keeps the first stripped context per case- and
// whitespace-insensitive form. Blank contexts are ignored.
func dedupContexts(group []clinical.EntityMention) []snippet {
	seen := make(map[string]struct{}, len(group))
	var out []snippet
	for _, m := range group {
		ctx := strings.TrimSpace(m.Context)
		if ctx == "" {
			continue
		}
		norm := strings.Join(strings.Fields(strings.ToLower(ctx)), " ")
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, snippet{text: ctx, typ: m.Type})
	}
	return out
}

// orderSnippets sorts by offset within the first mention's raw context.
// Snippets missing from it take offset -1 and so lead, in encounter order.
// With categoryFallback, any missing snippet switches the group to category
// rank instead. Both sorts are stable.
func orderSnippets(snippets []snippet, anchor string, categoryFallback bool) {
	offsets := make(map[string]int, len(snippets))
	allFound := true
	for _, s := range snippets {
		idx := strings.Index(anchor, s.text)
		if idx < 0 {
			allFound = false
		}
		offsets[s.text] = idx
	}

	if !allFound && categoryFallback {
		sort.SliceStable(snippets, func(i, j int) bool {
			return rankOf(snippets[i].typ) < rankOf(snippets[j].typ)
		})
		return
	}
	sort.SliceStable(snippets, func(i, j int) bool {
		return offsets[snippets[i].text] < offsets[snippets[j].text]
	})
}

func rankOf(t clinical.EntityType) int {
	if r, ok := categoryRank[t]; ok {
		return r
	}
	return len(categoryRank)
}

func (a *Assembler) suffix(k groupKey, entities []string) string {
	if a.opts.ChunkIDMode == ChunkIDContent {
		sum := sha256.Sum256([]byte(k.String() + "|" + strings.Join(entities, ",")))
		return hex.EncodeToString(sum[:])[:chunkIDSuffixLen]
	}
	id := a.newID()
	if len(id) > chunkIDSuffixLen {
		id = id[:chunkIDSuffixLen]
	}
	return id
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

type stringSet map[string]struct{}

func newStringSet() stringSet { return stringSet{} }

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

//Personal.AI order the ending
