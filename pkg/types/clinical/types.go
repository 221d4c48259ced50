// Package clinical defines the records that flow through the clinical entity
// pipeline: documents, entity mentions, and the timeline and chunk views derived
// from them. No pipeline logic lives here, only plain data types that any layer
// can import without creating circular dependencies.
package clinical

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// EntityType
// ─────────────────────────────────────────────────────────────────────────────

// EntityType classifies a mention by clinical category.
type EntityType string

const (
	TypeSymptom    EntityType = "symptom"
	TypeCondition  EntityType = "condition"
	TypeMedication EntityType = "medication"
	TypeProcedure  EntityType = "procedure"
	TypeLab        EntityType = "lab"
)

// AllEntityTypes lists every supported type in keyword discovery order.
var AllEntityTypes = []EntityType{TypeSymptom, TypeCondition, TypeLab, TypeMedication, TypeProcedure}

// IsValid reports whether t is one of the supported entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case TypeSymptom, TypeCondition, TypeMedication, TypeProcedure, TypeLab:
		return true
	}
	return false
}

// Document type tags.
const (
	DocTypeLabReport        = "lab_report"
	DocTypeClinicalNote     = "clinical_note"
	DocTypeDischargeSummary = "discharge_summary"
	DocTypeRadiologyReport  = "radiology_report"
	DocTypeUnknown          = "unknown"
)

// Section labels.
const (
	SectionLabResults  = "lab_results"
	SectionClinical    = "clinical"
	SectionUnspecified = "unspecified"
)

// Extraction sources recorded on each mention.
const (
	SourceKeyword    = "keyword"
	SourceLabPattern = "lab_pattern"
	SourceLabLine    = "lab_line"
)

// ─────────────────────────────────────────────────────────────────────────────
// Document
// ─────────────────────────────────────────────────────────────────────────────

// Document is one unit of ingested clinical text. Date is an ISO-8601
// (YYYY-MM-DD) string or nil when unknown.
type Document struct {
	Text    string  `json:"text"`
	Date    *string `json:"date"`
	Source  string  `json:"source"`
	DocType string  `json:"doc_type,omitempty"`
	// Section overrides the section derived from the document type.
	Section string `json:"section,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// EntityMention
// ─────────────────────────────────────────────────────────────────────────────

// EntityMention is one located occurrence of a clinical entity.
// Mentions are treated as read-only once extraction hands them off.
type EntityMention struct {
	Entity     string     `json:"entity"`
	Normalized string     `json:"normalized"`
	Type       EntityType `json:"type"`
	Value      *string    `json:"value"`
	Unit       *string    `json:"unit"`
	Negated    bool       `json:"negated"`
	Context    string     `json:"context"`
	Date       *string    `json:"date"`
	Source     string     `json:"source"`
	Section    string     `json:"section,omitempty"`

	ExtractionSource string `json:"extraction_source,omitempty"`
}

// SectionOrDefault returns the mention's section or "unspecified".
func (m EntityMention) SectionOrDefault() string {
	if m.Section == "" {
		return SectionUnspecified
	}
	return m.Section
}

// ─────────────────────────────────────────────────────────────────────────────
// Timeline views
// ─────────────────────────────────────────────────────────────────────────────

// Progression patterns.
const (
	PatternRecurrent  = "recurrent"
	PatternStable     = "stable"
	PatternIncreasing = "increasing"
	PatternDecreasing = "decreasing"
)

// IssueNegationConflict marks an entity asserted both negated and affirmed.
const IssueNegationConflict = "negation_conflict"

// Progression is a derived recurrence or trend for one entity.
// Symptom and condition progressions carry Occurrences; lab progressions
// carry Values.
type Progression struct {
	Entity      string     `json:"entity"`
	Type        EntityType `json:"type"`
	Pattern     string     `json:"pattern"`
	Occurrences int        `json:"occurrences,omitempty"`
	Values      []float64  `json:"values,omitempty"`
	Dates       []*string  `json:"dates"`
}

// ConflictEvent is one mention's contribution to a Conflict.
type ConflictEvent struct {
	Date    *string `json:"date"`
	Negated bool    `json:"negated"`
	Context string  `json:"context"`
	Source  string  `json:"source"`
}

// Conflict records a negation-state contradiction for one entity across time.
type Conflict struct {
	Entity string          `json:"entity"`
	Issue  string          `json:"issue"`
	Events []ConflictEvent `json:"events"`
}

// EntityHistory maps a normalized entity id to its mentions in chronological
// order. Keys iterate in order of first appearance.
type EntityHistory struct {
	keys   []string
	groups map[string][]EntityMention
}

// NewEntityHistory returns an empty history.
func NewEntityHistory() *EntityHistory {
	return &EntityHistory{groups: make(map[string][]EntityMention)}
}

// Append adds m to the group for key, registering key on first use.
func (h *EntityHistory) Append(key string, m EntityMention) {
	if h.groups == nil {
		h.groups = make(map[string][]EntityMention)
	}
	if _, ok := h.groups[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.groups[key] = append(h.groups[key], m)
}

// Keys returns the group keys in first-appearance order.
func (h *EntityHistory) Keys() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Get returns the mentions for key.
func (h *EntityHistory) Get(key string) []EntityMention {
	if h == nil {
		return nil
	}
	return h.groups[key]
}

// Len returns the number of groups.
func (h *EntityHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// MarshalJSON encodes the history as an object whose keys keep insertion order.
func (h *EntityHistory) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range h.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(h.groups[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Timeline is the output of a timeline build.
type Timeline struct {
	Timeline      []EntityMention `json:"timeline"`
	EntityHistory *EntityHistory  `json:"entity_history"`
	Progressions  []Progression   `json:"progressions"`
	Conflicts     []Conflict      `json:"conflicts"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Chunk
// ─────────────────────────────────────────────────────────────────────────────

// LabRecord is one lab mention summarized inside a chunk.
type LabRecord struct {
	Lab     string  `json:"lab"`
	Value   *string `json:"value"`
	Unit    *string `json:"unit"`
	Context string  `json:"context"`
}

// ChunkMetadata carries the fields required by embedding and vector-store
// consumers. NegatedEntities and Labs are never nil.
type ChunkMetadata struct {
	DocType         string      `json:"doc_type"`
	NegatedEntities []string    `json:"negated_entities"`
	Labs            []LabRecord `json:"labs"`
}

// Chunk is a bounded, deduplicated aggregation of mentions sharing
// (source, date, section).
type Chunk struct {
	ChunkID     string        `json:"chunk_id"`
	Text        string        `json:"text"`
	Entities    []string      `json:"entities"`
	EntityTypes []EntityType  `json:"entity_types"`
	Section     string        `json:"section"`
	Date        *string       `json:"date"`
	Source      string        `json:"source"`
	Metadata    ChunkMetadata `json:"metadata"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-document result
// ─────────────────────────────────────────────────────────────────────────────

// DocMetadata identifies the document a DocumentResult came from.
type DocMetadata struct {
	Source  string  `json:"source"`
	Date    *string `json:"date"`
	DocType string  `json:"doc_type"`
}

// DocumentResult is the per-document extraction payload saved by result sinks.
type DocumentResult struct {
	DocMetadata    DocMetadata     `json:"doc_metadata"`
	Entities       []EntityMention `json:"entities"`
	ResidualText   string          `json:"residual_text"`
	ConclusionText string          `json:"conclusion_text"`
}

// ResultObjectName names a saved DocumentResult:
// nlp_output_<UTC yyyymmdd_hhmmss>_<source>.json. Characters outside
// [A-Za-z0-9._-] in source become "_".
func ResultObjectName(source string, at time.Time) string {
	if source == "" {
		source = "document"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, source)
	return "nlp_output_" + at.UTC().Format("20060102_150405") + "_" + safe + ".json"
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns *p or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

//Personal.AI order the ending
