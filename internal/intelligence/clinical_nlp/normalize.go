package clinical_nlp

import (
	"regexp"
	"strings"
)

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// Normalize maps a raw mention to its canonical identifier: trimmed,
// uppercased, with each whitespace run replaced by "_". It performs no
// semantic mapping and is idempotent.
func Normalize(entity string) string {
	return whitespaceRunRe.ReplaceAllString(strings.ToUpper(strings.TrimSpace(entity)), "_")
}

//Personal.AI order the ending
