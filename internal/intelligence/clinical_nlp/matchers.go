package clinical_nlp

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Matcher contract
// ---------------------------------------------------------------------------

// RawMention is a matcher hit before document metadata, section and
// normalization are attached.
type RawMention struct {
	Entity  string
	Type    clinical.EntityType
	Value   *string
	Unit    *string
	Negated bool
	Context string
	Start   int
	End     int
	Source  string
}

// Matcher finds mentions of one kind in a document's text. Matchers are
// independent; Applies gates a matcher on the detected document type.
type Matcher interface {
	Name() string
	Applies(docType string) bool
	Match(text string) []RawMention
}

// ---------------------------------------------------------------------------
// Keyword matcher
// ---------------------------------------------------------------------------

type keywordTerm struct {
	term string
	re   *regexp.Regexp
}

// KeywordMatcher emits one mention per case-insensitive whole-word occurrence
// of each vocabulary term.
type KeywordMatcher struct {
	category      clinical.EntityType
	terms         []keywordTerm
	negation      NegationScanner
	contextWindow int
}

// NewKeywordMatcher compiles a whole-word pattern for every term.
func NewKeywordMatcher(category clinical.EntityType, terms []string, negation NegationScanner, contextWindow int) *KeywordMatcher {
	m := &KeywordMatcher{category: category, negation: negation, contextWindow: contextWindow}
	for _, t := range terms {
		kw := strings.ToLower(strings.TrimSpace(t))
		if kw == "" {
			continue
		}
		m.terms = append(m.terms, keywordTerm{
			term: kw,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}
	return m
}

func (m *KeywordMatcher) Name() string { return "keyword_" + string(m.category) }

func (m *KeywordMatcher) Applies(string) bool { return true }

func (m *KeywordMatcher) Match(text string) []RawMention {
	var out []RawMention
	for _, kt := range m.terms {
		for _, loc := range kt.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			out = append(out, RawMention{
				Entity:  kt.term,
				Type:    m.category,
				Negated: m.negation.IsNegated(text, start),
				Context: contextWindow(text, start, end, m.contextWindow),
				Start:   start,
				End:     end,
				Source:  clinical.SourceKeyword,
			})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Structured lab matcher
// ---------------------------------------------------------------------------

type compiledLab struct {
	name string
	re   *regexp.Regexp
}

// LabPatternMatcher applies named `alias [:=]? number [unit]?` patterns. It
// runs on documents that are not lab-style reports unless AnyDocType is set.
type LabPatternMatcher struct {
	AnyDocType bool

	labs          []compiledLab
	negation      NegationScanner
	contextWindow int
}

// NewLabPatternMatcher compiles each pattern case-insensitively. Patterns are
// expected to have passed Vocabulary.Validate.
func NewLabPatternMatcher(patterns []LabPattern, negation NegationScanner, contextWindow int) (*LabPatternMatcher, error) {
	m := &LabPatternMatcher{negation: negation, contextWindow: contextWindow}
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p.Pattern)
		if err != nil {
			return nil, err
		}
		m.labs = append(m.labs, compiledLab{name: p.Name, re: re})
	}
	return m, nil
}

func (m *LabPatternMatcher) Name() string { return "lab_pattern" }

func (m *LabPatternMatcher) Applies(docType string) bool {
	return m.AnyDocType || docType != clinical.DocTypeLabReport
}

func (m *LabPatternMatcher) Match(text string) []RawMention {
	var out []RawMention
	for _, lab := range m.labs {
		for _, loc := range lab.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			value := group(text, loc, 2)
			if value == nil {
				continue
			}
			out = append(out, RawMention{
				Entity:  lab.name,
				Type:    clinical.TypeLab,
				Value:   value,
				Unit:    group(text, loc, 3),
				Negated: m.negation.IsNegated(text, start),
				Context: contextWindow(text, start, end, m.contextWindow),
				Start:   start,
				End:     end,
				Source:  clinical.SourceLabPattern,
			})
		}
	}
	return out
}

// group returns submatch n or nil when it did not participate or is empty.
func group(text string, loc []int, n int) *string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 || loc[2*n] == loc[2*n+1] {
		return nil
	}
	s := text[loc[2*n]:loc[2*n+1]]
	return &s
}

// ---------------------------------------------------------------------------
// Line-heuristic lab matcher
// ---------------------------------------------------------------------------

var (
	lineValueRe     = regexp.MustCompile(`\s(\d{1,4}(?:\.\d{1,2})?)\s`)
	nameTrailJunkRe = regexp.MustCompile(`[^a-zA-Z0-9\s\(\)]+$`)
	digitRe         = regexp.MustCompile(`\d`)
	lineBreakRe     = regexp.MustCompile(`\r\n|\r|\n`)
	leadingUnitRe   = regexp.MustCompile(`^([a-zA-Z/%]+)`)
)

// LineLabMatcher parses noisy tabular lab reports line by line, pivoting on
// the first standalone number: the text left of it is the lab name and the
// first token right of it is the unit. It runs only on lab-style reports.
type LineLabMatcher struct {
	junkPrefixes []string
	unitCleanup  map[string]string
	logger       Logger
}

// NewLineLabMatcher builds the matcher from the vocabulary heuristics.
func NewLineLabMatcher(junkPrefixes []string, unitCleanup map[string]string, logger Logger) *LineLabMatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	prefixes := make([]string, 0, len(junkPrefixes))
	for _, p := range junkPrefixes {
		prefixes = append(prefixes, strings.ToLower(p))
	}
	return &LineLabMatcher{junkPrefixes: prefixes, unitCleanup: unitCleanup, logger: logger}
}

func (m *LineLabMatcher) Name() string { return "lab_line" }

func (m *LineLabMatcher) Applies(docType string) bool {
	return docType == clinical.DocTypeLabReport
}

// Match never panics: a line that fails any step is skipped. Lines end at
// "\r\n", "\r" or "\n".
func (m *LineLabMatcher) Match(text string) []RawMention {
	var out []RawMention
	offset := 0
	emit := func(line string) {
		if rm, ok := m.safeParseLine(line); ok {
			rm.Start = offset + strings.Index(line, rm.Context)
			rm.End = rm.Start + len(rm.Context)
			out = append(out, rm)
		}
	}
	for _, br := range lineBreakRe.FindAllStringIndex(text, -1) {
		emit(text[offset:br[0]])
		offset = br[1]
	}
	emit(text[offset:])
	return out
}

func (m *LineLabMatcher) safeParseLine(line string) (rm RawMention, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("lab line skipped after panic", "line", line, "panic", r)
			rm, ok = RawMention{}, false
		}
	}()
	return m.parseLine(line)
}

func (m *LineLabMatcher) parseLine(line string) (RawMention, bool) {
	clean := strings.TrimSpace(line)
	if utf8.RuneCountInString(clean) < 5 {
		return RawMention{}, false
	}

	lower := strings.ToLower(clean)
	for _, prefix := range m.junkPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return RawMention{}, false
		}
	}

	padded := " " + clean + " "
	loc := lineValueRe.FindStringSubmatchIndex(padded)
	if loc == nil {
		return RawMention{}, false
	}
	// Offsets in padded are one past the matching offsets in clean.
	valueStart, valueEnd := loc[2]-1, loc[3]-1
	value := clean[valueStart:valueEnd]

	name := strings.TrimSpace(clean[:valueStart])
	name = strings.TrimSpace(nameTrailJunkRe.ReplaceAllString(name, ""))
	if utf8.RuneCountInString(name) < 3 || digitRe.MatchString(name) {
		return RawMention{}, false
	}

	var unit *string
	if um := leadingUnitRe.FindStringSubmatch(strings.TrimSpace(clean[valueEnd:])); um != nil {
		u := m.cleanUnit(um[1])
		unit = &u
	}

	return RawMention{
		Entity:  name,
		Type:    clinical.TypeLab,
		Value:   &value,
		Unit:    unit,
		Negated: false,
		Context: clean,
		Source:  clinical.SourceLabLine,
	}, true
}

// cleanUnit corrects common OCR unit corruptions and keeps unknown units as-is.
func (m *LineLabMatcher) cleanUnit(raw string) string {
	key := strings.ReplaceAll(strings.ToLower(raw), ".", "")
	if fixed, ok := m.unitCleanup[key]; ok {
		return fixed
	}
	return raw
}

//Personal.AI order the ending
