// Package tui implements Sage's terminal chat interface.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/normanking/sage/internal/agent"
)

// localChannelRef identifies the terminal session's conversation channel.
const localChannelRef = "local"

// TurnHandler runs one utterance through the orchestrator. Satisfied by
// *agent.Manager.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req *agent.TurnRequest) (agent.TurnResult, error)
}

// TUI is the terminal chat interface.
type TUI struct {
	handler TurnHandler
	userID  string
	program *tea.Program
}

// New creates a TUI bound to the orchestrator.
func New(handler TurnHandler, userID string) *TUI {
	return &TUI{
		handler: handler,
		userID:  userID,
	}
}

// Run starts the chat interface and blocks until it exits.
func (t *TUI) Run(ctx context.Context) error {
	model := NewModel(func(utterance string) tea.Cmd {
		return func() tea.Msg {
			result, err := t.handler.HandleTurn(ctx, &agent.TurnRequest{
				UserID:       t.userID,
				Utterance:    utterance,
				Conversation: agent.NewConversation("tui", localChannelRef),
			})
			if err != nil {
				return turnErrMsg{err: err}
			}

			switch res := result.(type) {
			case *agent.Response:
				return responseMsg{content: res.Content}
			case *agent.CodeChangeAck:
				return responseMsg{content: res.Message}
			default:
				return turnErrMsg{err: fmt.Errorf("unexpected turn result %T", result)}
			}
		}
	})

	t.program = tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		t.program.Quit()
	}()

	if _, err := t.program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
