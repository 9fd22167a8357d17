// Package intent implements Sage's deterministic, keyword-driven routing
// heuristics: the intent classifier and the code-change detector. Both are
// pure functions over the raw utterance; neither does I/O.
package intent

import "strings"

// Decision is the classifier's routing output for one utterance.
type Decision struct {
	// RequiresContext is true when the utterance should be answered with
	// external PARA context folded into the prompt.
	RequiresContext bool

	// Label is "query" when context is required, otherwise "general".
	Label string
}

// contextKeywords is the fixed vocabulary that routes an utterance to the
// external context provider: PARA nouns plus query verbs.
var contextKeywords = []string{
	"project",
	"area",
	"resource",
	"task",
	"goal",
	"archive",
	"note",
	"what",
	"show",
	"list",
	"find",
	"when",
	"status",
}

// Classify evaluates the utterance against the fixed keyword set.
// Deterministic and idempotent; there is no failure mode.
func Classify(utterance string) Decision {
	lowered := strings.ToLower(utterance)

	for _, kw := range contextKeywords {
		if strings.Contains(lowered, kw) {
			return Decision{RequiresContext: true, Label: "query"}
		}
	}

	return Decision{Label: "general"}
}
