package memory

import (
	"fmt"
	"strings"
)

// summarizeAfter is the minimum history length before a full summary is
// produced. Shorter histories get a bare identity line.
const summarizeAfter = 5

// turnExcerptLen is the maximum number of runes of each message quoted in a
// summary.
const turnExcerptLen = 30

// summarize produces a deterministic condensation of r's history. It never
// calls a model: the summary is a local computation so memory maintenance
// stays cheap and reproducible.
func summarize(r *Record, role string) string {
	if role == "" {
		role = "unknown"
	}
	if len(r.History) < summarizeAfter {
		return fmt.Sprintf("Core identity: %s. No notable history.", role)
	}

	recent := r.History
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	excerpts := make([]string, 0, len(recent))
	for _, t := range recent {
		excerpts = append(excerpts, fmt.Sprintf("%s -> %s",
			truncate(t.PlayerMessage, turnExcerptLen),
			truncate(t.Response, turnExcerptLen)))
	}

	return fmt.Sprintf("Summary: core identity unchanged (%s). Recently [%s]. Relationship: %d. Emotion: %s.",
		role, strings.Join(excerpts, "; "), r.Relationship, r.Emotion)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
