package clinical_nlp

import (
	"strings"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// minResidualLineLength is compared against the untrimmed line.
const minResidualLineLength = 20

// BuildResidualText returns the lines of text that produced no kept mention,
// which is where free-form comments usually live. Lines are trimmed, blank
// lines are dropped, and short lines are ignored as table debris.
func BuildResidualText(text string, kept []clinical.EntityMention) string {
	contexts := make(map[string]struct{}, len(kept))
	for _, m := range kept {
		contexts[m.Context] = struct{}{}
	}

	var residual []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, seen := contexts[trimmed]; seen {
			continue
		}
		if len(line) > minResidualLineLength {
			residual = append(residual, trimmed)
		}
	}
	return strings.Join(residual, "\n")
}

//Personal.AI order the ending
