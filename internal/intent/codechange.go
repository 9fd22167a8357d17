package intent

import (
	"strings"

	"github.com/normanking/sage/internal/store"
)

// Detection is the code-change detector's output. When Detected is false the
// remaining fields are zero.
type Detection struct {
	Detected bool
	Category store.ChangeCategory
	Priority store.ChangePriority
}

// changeKeywords mark an utterance as a feature/change request.
var changeKeywords = []string{
	"implement",
	"build",
	"integrate",
	"add a feature",
	"add feature",
	"can you add",
	"can you make",
	"can you build",
	"can you create",
	"fix code",
	"fix the code",
	"fix a bug",
	"new feature",
	"feature request",
	"would be nice if",
	"it would be great if",
}

// Category keyword sets, checked in order: bugfix, refactor, integration.
// Anything else is a feature.
var (
	bugfixKeywords      = []string{"fix", "bug", "broken", "error", "crash", "wrong"}
	refactorKeywords    = []string{"refactor", "clean up", "cleanup", "reorganize", "restructure", "simplify"}
	integrationKeywords = []string{"integrate", "integration", "connect", "webhook", "sync with", "api"}
)

// Priority keyword sets.
var (
	urgentKeywords   = []string{"urgent", "asap", "immediately", "critical", "right away"}
	deferralKeywords = []string{"later", "eventually", "someday", "no rush", "when you can", "low priority"}
)

// Detect evaluates whether the utterance is an implicit feature/change
// request. Pure function; a positive detection short-circuits the turn
// before any model call.
func Detect(utterance string) Detection {
	lowered := strings.ToLower(utterance)

	if !containsAny(lowered, changeKeywords) {
		return Detection{}
	}

	return Detection{
		Detected: true,
		Category: categorize(lowered),
		Priority: prioritize(lowered),
	}
}

// categorize picks the category by first match, defaulting to feature.
func categorize(lowered string) store.ChangeCategory {
	switch {
	case containsAny(lowered, bugfixKeywords):
		return store.CategoryBugfix
	case containsAny(lowered, refactorKeywords):
		return store.CategoryRefactor
	case containsAny(lowered, integrationKeywords):
		return store.CategoryIntegration
	default:
		return store.CategoryFeature
	}
}

// prioritize maps urgency/deferral vocabulary to a priority, medium by
// default.
func prioritize(lowered string) store.ChangePriority {
	switch {
	case containsAny(lowered, urgentKeywords):
		return store.PriorityHigh
	case containsAny(lowered, deferralKeywords):
		return store.PriorityLow
	default:
		return store.PriorityMedium
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
