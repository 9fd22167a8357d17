package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreMemoryImportanceBase(t *testing.T) {
	mem := &Memory{Importance: 0.6, Content: "unrelated"}
	assert.InDelta(t, 0.6, ScoreMemory(mem, "totally different words"), 1e-9)
}

func TestScoreMemoryKeywordOverlap(t *testing.T) {
	mem := &Memory{Importance: 0.5, Content: "wants to finish the garden project"}

	// 3 of 4 query words match: overlap 0.75, boost 0.225.
	score := ScoreMemory(mem, "garden project finish soon")
	assert.InDelta(t, 0.5+0.75*0.3, score, 1e-9)
}

func TestScoreMemoryRecencyBoost(t *testing.T) {
	fresh := &Memory{Importance: 0.5, LastAccessed: time.Now()}
	stale := &Memory{Importance: 0.5, LastAccessed: time.Now().Add(-30 * 24 * time.Hour)}
	never := &Memory{Importance: 0.5}

	assert.Greater(t, ScoreMemory(fresh, ""), ScoreMemory(stale, ""))
	assert.Greater(t, ScoreMemory(stale, ""), ScoreMemory(never, ""))
}

func TestScoreMemoryAccessFrequencyCapped(t *testing.T) {
	ten := &Memory{Importance: 0.5, AccessCount: 10}
	hundred := &Memory{Importance: 0.5, AccessCount: 100}

	assert.InDelta(t, ScoreMemory(ten, ""), ScoreMemory(hundred, ""), 1e-9)
	assert.InDelta(t, 0.55, ScoreMemory(ten, ""), 1e-9)
}

func TestKeywordOverlap(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		want    float64
	}{
		{"full overlap", "walk the dog", "walk the dog", 1},
		{"partial overlap", "walk the dog", "feed the dog", 2.0 / 3.0},
		{"no overlap", "walk the dog", "completely different", 0},
		{"empty query", "walk the dog", "", 0},
		{"punctuation ignored", "walk, the. dog!", "walk dog", 1},
		{"case insensitive", "Walk The Dog", "walk the DOG", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, keywordOverlap(tt.content, tt.query), 1e-9)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, tokenize("Hello, world! 42"))
	assert.Empty(t, tokenize("..."))
}
