package clinical_nlp

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Vocabulary data
// ---------------------------------------------------------------------------

// LabPattern names a lab and the case-insensitive pattern that finds it.
// The pattern must define at least two groups: alias and value. A third group,
// when present, captures the unit.
type LabPattern struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Vocabulary is the data half of the extractor: keyword lists per category,
// structured lab patterns, and the lab-report heuristics.
type Vocabulary struct {
	Keywords     map[clinical.EntityType][]string `json:"keywords" yaml:"keywords"`
	LabPatterns  []LabPattern                     `json:"lab_patterns" yaml:"lab_patterns"`
	LabMarkers   []string                         `json:"lab_markers" yaml:"lab_markers"`
	JunkPrefixes []string                         `json:"junk_prefixes" yaml:"junk_prefixes"`
	UnitCleanup  map[string]string                `json:"unit_cleanup" yaml:"unit_cleanup"`
	NegationCues []string                         `json:"negation_cues" yaml:"negation_cues"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Keywords: map[clinical.EntityType][]string{
			clinical.TypeSymptom: {
				"chest pain", "shortness of breath", "fever", "fatigue",
				"weight loss", "cough", "headache", "palpitations",
				"nausea", "vomiting", "dizziness",
			},
			clinical.TypeCondition: {
				"diabetes", "hypertension", "tuberculosis", "cancer",
				"pneumonia", "asthma", "anemia", "myocardial infarction",
			},
			clinical.TypeMedication: {
				"paracetamol", "aspirin", "metformin",
				"insulin", "amoxicillin", "atorvastatin",
			},
			clinical.TypeProcedure: {
				"ct scan", "x-ray", "ecg", "echocardiogram",
				"angiography", "biopsy",
			},
		},
		LabPatterns: []LabPattern{
			{Name: "hemoglobin", Pattern: `(hemoglobin|hb)\s*[:=]?\s*(\d+\.?\d*)\s*(g/dl|gm/dl)?`},
			{Name: "wbc", Pattern: `(wbc|white blood cell)\s*[:=]?\s*(\d+)\s*(/mm3|x10\^3)?`},
			{Name: "esr", Pattern: `(esr)\s*[:=]?\s*(\d+)\s*(mm/hr)?`},
			{Name: "platelets", Pattern: `(platelet[s]?)\s*[:=]?\s*(\d+)\s*(/mm3|x10\^3)?`},
		},
		LabMarkers: []string{
			"bilirubin", "sgot", "sgpt", "alkaline", "albumin", "globulin",
			"serum", "lft", "hemoglobin", "platelet", "neutrophils", "lymphocytes",
			"investigation", "observed value", "biological ref", "method", "unit",
		},
		JunkPrefixes: []string{
			"iso", "i so", "regn", "mci", "hospital",
			"specimen", "facility", "note", "end of report",
			"doctor", "patient", "company", "sponsor",
		},
		UnitCleanup: map[string]string{
			"mgdl": "mg/dL", "mg/dl": "mg/dL", "mgid": "mg/dL",
			"u/l": "U/L", "iul": "IU/L", "u/1": "U/L",
			"gnvdl": "g/dL", "giivdl": "g/dL", "omdt": "g/dL", "g/dl": "g/dL",
		},
		NegationCues: append([]string(nil), DefaultNegationCues...),
	}
}

// Validate checks that every category is known and every lab pattern compiles
// with the required groups.
func (v Vocabulary) Validate() error {
	for category, terms := range v.Keywords {
		if category == clinical.TypeLab || !category.IsValid() {
			return errors.Newf(errors.ErrCodeVocabularyInvalid, "unsupported keyword category %q", category)
		}
		for _, term := range terms {
			if strings.TrimSpace(term) == "" {
				return errors.Newf(errors.ErrCodeVocabularyInvalid, "empty term in category %q", category)
			}
		}
	}
	for _, lp := range v.LabPatterns {
		if lp.Name == "" {
			return errors.New(errors.ErrCodeLabPatternInvalid, "lab pattern without a name")
		}
		re, err := regexp.Compile(lp.Pattern)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeLabPatternInvalid, "lab %q pattern does not compile", lp.Name)
		}
		if re.NumSubexp() < 2 {
			return errors.Newf(errors.ErrCodeLabPatternInvalid, "lab %q pattern needs alias and value groups", lp.Name)
		}
	}
	return nil
}

// vocabularyFile mirrors Vocabulary with string category keys so YAML files
// can use plain names.
type vocabularyFile struct {
	Keywords     map[string][]string `yaml:"keywords"`
	LabPatterns  []LabPattern        `yaml:"lab_patterns"`
	LabMarkers   []string            `yaml:"lab_markers"`
	JunkPrefixes []string            `yaml:"junk_prefixes"`
	UnitCleanup  map[string]string   `yaml:"unit_cleanup"`
	NegationCues []string            `yaml:"negation_cues"`
}

// ParseVocabulary decodes a YAML vocabulary. Sections absent from the document
// keep their default values.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Vocabulary{}, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "failed to decode vocabulary yaml")
	}

	v := DefaultVocabulary()
	if f.Keywords != nil {
		v.Keywords = make(map[clinical.EntityType][]string, len(f.Keywords))
		for k, terms := range f.Keywords {
			v.Keywords[clinical.EntityType(strings.ToLower(k))] = terms
		}
	}
	if f.LabPatterns != nil {
		v.LabPatterns = f.LabPatterns
	}
	if f.LabMarkers != nil {
		v.LabMarkers = f.LabMarkers
	}
	if f.JunkPrefixes != nil {
		v.JunkPrefixes = f.JunkPrefixes
	}
	if f.UnitCleanup != nil {
		v.UnitCleanup = f.UnitCleanup
	}
	if f.NegationCues != nil {
		v.NegationCues = f.NegationCues
	}

	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// LoadVocabularyFile reads and parses a YAML vocabulary file.
func LoadVocabularyFile(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "failed to read vocabulary file").
			WithDetail("path=" + path)
	}
	return ParseVocabulary(data)
}

//Personal.AI order the ending
