package agent

import (
	"strings"

	"github.com/normanking/sage/internal/brain"
	"github.com/normanking/sage/internal/para"
	"github.com/normanking/sage/internal/store"
)

// basePrompt is the assistant's standing instruction.
const basePrompt = `You are Sage, a personal assistant. You help the user manage their projects, areas, resources, and goals, and you remember what they tell you.

- Be clear and concise
- Use what you know about the user when it is relevant
- When context about projects or tasks is provided, ground your answer in it
- Admit when you don't know something`

// composePrompt builds the ordered message list for one generation: a system
// instruction embedding gathered context and retrieved memories, the most
// recent history turns, then the current utterance.
func composePrompt(gathered *para.Context, memories []store.Memory, history []store.Message, utterance string, promptTurns int) []brain.ChatMessage {
	messages := make([]brain.ChatMessage, 0, len(history)+2)
	messages = append(messages, brain.ChatMessage{
		Role:    brain.RoleSystem,
		Content: systemInstruction(gathered, memories),
	})

	if promptTurns > 0 && len(history) > promptTurns {
		history = history[len(history)-promptTurns:]
	}
	for _, msg := range history {
		role := brain.RoleUser
		if msg.Role == store.RoleAssistant {
			role = brain.RoleAssistant
		}
		messages = append(messages, brain.ChatMessage{Role: role, Content: msg.Content})
	}

	messages = append(messages, brain.ChatMessage{Role: brain.RoleUser, Content: utterance})
	return messages
}

// systemInstruction folds memories and external context into the standing
// instruction.
func systemInstruction(gathered *para.Context, memories []store.Memory) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	if len(memories) > 0 {
		sb.WriteString("\n\nWhat you know about the user:\n")
		for _, mem := range memories {
			sb.WriteString("- [" + string(mem.Type) + "] " + mem.Content + "\n")
		}
	}

	if rendered := gathered.Render(); rendered != "" {
		sb.WriteString("\n\n" + rendered)
	}

	return sb.String()
}
