package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/sage/internal/brain"
	"github.com/normanking/sage/internal/para"
	"github.com/normanking/sage/internal/store"
)

func TestComposePromptShape(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Content: "earlier question"},
		{Role: store.RoleAssistant, Content: "earlier answer"},
	}

	msgs := composePrompt(nil, nil, history, "current question", 10)
	require.Len(t, msgs, 4)

	assert.Equal(t, brain.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are Sage")

	assert.Equal(t, brain.RoleUser, msgs[1].Role)
	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, brain.RoleAssistant, msgs[2].Role)

	assert.Equal(t, brain.RoleUser, msgs[3].Role)
	assert.Equal(t, "current question", msgs[3].Content)
}

func TestComposePromptTrimsHistory(t *testing.T) {
	history := make([]store.Message, 6)
	for i := range history {
		history[i] = store.Message{Role: store.RoleUser, Content: string(rune('a' + i))}
	}

	msgs := composePrompt(nil, nil, history, "now", 4)
	// System, 4 history turns, current utterance.
	require.Len(t, msgs, 6)
	assert.Equal(t, "c", msgs[1].Content, "oldest turns fall off first")
	assert.Equal(t, "f", msgs[4].Content)
}

func TestSystemInstructionIncludesMemories(t *testing.T) {
	memories := []store.Memory{
		{Type: store.MemoryPreference, Content: "prefers short answers"},
		{Type: store.MemoryGoal, Content: "wants to run a marathon"},
	}

	got := systemInstruction(nil, memories)
	assert.Contains(t, got, "What you know about the user:")
	assert.Contains(t, got, "- [preference] prefers short answers")
	assert.Contains(t, got, "- [goal] wants to run a marathon")
}

func TestSystemInstructionIncludesGatheredContext(t *testing.T) {
	gathered := &para.Context{
		Kind:  para.KindTasks,
		Tasks: []para.Task{{Title: "water plants"}},
	}

	got := systemInstruction(gathered, nil)
	assert.Contains(t, got, "Open tasks:")
	assert.Contains(t, got, "water plants")
}

func TestSystemInstructionBareWhenNothingKnown(t *testing.T) {
	got := systemInstruction(nil, nil)
	assert.Equal(t, basePrompt, got)
}
