package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/sage/internal/store"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      []Candidate
	}{
		{
			name:      "preference",
			utterance: "I prefer short answers",
			want: []Candidate{
				{Type: store.MemoryPreference, Content: "I prefer short answers", Importance: 0.8},
			},
		},
		{
			name:      "goal",
			utterance: "My goal is to run a marathon next spring",
			want: []Candidate{
				{Type: store.MemoryGoal, Content: "My goal is to run a marathon next spring", Importance: 0.9},
			},
		},
		{
			name:      "fact",
			utterance: "I work as a landscape architect",
			want: []Candidate{
				{Type: store.MemoryFact, Content: "I work as a landscape architect", Importance: 0.7},
			},
		},
		{
			name:      "multiple rules fire independently",
			utterance: "I like cycling and I want to ride across the country",
			want: []Candidate{
				{Type: store.MemoryPreference, Content: "I like cycling and I want to ride across the country", Importance: 0.8},
				{Type: store.MemoryGoal, Content: "I like cycling and I want to ride across the country", Importance: 0.9},
			},
		},
		{
			name:      "one candidate per rule even with two triggers",
			utterance: "I prefer tea and I like it strong",
			want: []Candidate{
				{Type: store.MemoryPreference, Content: "I prefer tea and I like it strong", Importance: 0.8},
			},
		},
		{
			name:      "no triggers",
			utterance: "What's the weather like tomorrow?",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.utterance, "noted")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractIgnoresAssistantResponse(t *testing.T) {
	got := Extract("Thanks!", "I prefer to keep my answers short")
	require.Empty(t, got, "trigger phrases in the assistant reply must not produce memories")
}

func TestExtractCaseInsensitive(t *testing.T) {
	got := Extract("i PREFER dark mode", "")
	require.Len(t, got, 1)
	assert.Equal(t, store.MemoryPreference, got[0].Type)
	assert.Equal(t, "i PREFER dark mode", got[0].Content, "content keeps the original casing")
}
