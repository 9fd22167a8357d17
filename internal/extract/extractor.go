// Package extract implements Sage's deterministic memory extraction: fixed
// rules over a completed exchange producing durable memory candidates.
package extract

import (
	"strings"

	"github.com/normanking/sage/internal/store"
)

// Candidate is a memory proposed by extraction. The orchestrator persists
// candidates; extraction itself never touches the store.
type Candidate struct {
	Type       store.MemoryType
	Content    string
	Importance float64
}

// rule maps trigger phrases to a memory type with a fixed importance.
type rule struct {
	triggers   []string
	typ        store.MemoryType
	importance float64
}

// The base policy: rules are evaluated independently, so one utterance can
// yield multiple memories. Importances are constants, not computed.
var rules = []rule{
	{
		triggers:   []string{"i prefer", "i like"},
		typ:        store.MemoryPreference,
		importance: 0.8,
	},
	{
		triggers:   []string{"my goal", "i want to"},
		typ:        store.MemoryGoal,
		importance: 0.9,
	},
	{
		triggers:   []string{"i am", "i have", "i work"},
		typ:        store.MemoryFact,
		importance: 0.7,
	},
}

// Extract evaluates the rules over the exchange. The assistant response is
// accepted for future policies but only the user utterance drives matching.
// Pure and deterministic: identical inputs always yield identical candidates.
func Extract(userUtterance, assistantResponse string) []Candidate {
	_ = assistantResponse

	lowered := strings.ToLower(userUtterance)

	var candidates []Candidate
	for _, r := range rules {
		for _, trigger := range r.triggers {
			if strings.Contains(lowered, trigger) {
				candidates = append(candidates, Candidate{
					Type:       r.typ,
					Content:    userUtterance,
					Importance: r.importance,
				})
				break
			}
		}
	}

	return candidates
}
