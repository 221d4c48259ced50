package clinical_nlp

import (
	"strings"
	"unicode/utf8"
)

// DefaultNegationWindow is the number of characters scanned before a mention.
const DefaultNegationWindow = 40

// DefaultNegationCues are matched as literal substrings, not whole words.
var DefaultNegationCues = []string{
	"no", "not", "denies", "denied", "without",
	"absence of", "negative for", "free of",
}

// NegationScanner decides whether a mention is negated by scanning a fixed
// window of text before it for cue phrases.
type NegationScanner struct {
	Window int
	Cues   []string
}

// NewNegationScanner returns a scanner with the default window and cues.
func NewNegationScanner() NegationScanner {
	return NegationScanner{Window: DefaultNegationWindow, Cues: DefaultNegationCues}
}

// IsNegated reports whether any cue occurs in the lowercased window
// text[start-Window : start]. start is a byte offset and is clamped to the
// text; the window is measured in runes.
func (s NegationScanner) IsNegated(text string, start int) bool {
	window := precedingWindow(text, start, s.Window)
	if window == "" {
		return false
	}
	window = strings.ToLower(window)
	for _, cue := range s.Cues {
		if cue != "" && strings.Contains(window, cue) {
			return true
		}
	}
	return false
}

// IsNegated applies the default scanner.
func IsNegated(text string, start int) bool {
	return defaultScanner.IsNegated(text, start)
}

var defaultScanner = NewNegationScanner()

// precedingWindow returns up to n runes of text ending at byte offset end.
func precedingWindow(text string, end, n int) string {
	if end > len(text) {
		end = len(text)
	}
	if end <= 0 || n <= 0 {
		return ""
	}
	begin := end
	for i := 0; i < n && begin > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:begin])
		begin -= size
	}
	return text[begin:end]
}

// followingWindow returns up to n runes of text starting at byte offset begin.
func followingWindow(text string, begin, n int) string {
	if begin < 0 {
		begin = 0
	}
	if begin >= len(text) || n <= 0 {
		return ""
	}
	end := begin
	for i := 0; i < n && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return text[begin:end]
}

// contextWindow returns text spanning window runes either side of [start, end).
func contextWindow(text string, start, end, window int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	return precedingWindow(text, start, window) + text[start:end] + followingWindow(text, end, window)
}

//Personal.AI order the ending
