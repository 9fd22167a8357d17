package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// chatMessage is one entry in the chat transcript.
type chatMessage struct {
	role      string // "user", "assistant", "system"
	content   string
	timestamp time.Time
}

// KeyMap defines the chat key bindings.
type KeyMap struct {
	Send  key.Binding
	Clear key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// Styles holds the lipgloss styles for the chat view.
type Styles struct {
	Header    lipgloss.Style
	UserMsg   lipgloss.Style
	BotMsg    lipgloss.Style
	SystemMsg lipgloss.Style
	Status    lipgloss.Style
	Input     lipgloss.Style
}

// DefaultStyles returns the default styling.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		UserMsg: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		BotMsg: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		SystemMsg: lipgloss.NewStyle().
			Faint(true),
		Status: lipgloss.NewStyle().
			Faint(true),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
	}
}

// responseMsg carries a completed turn's reply into the update loop.
type responseMsg struct {
	content string
}

// turnErrMsg carries a failed turn into the update loop.
type turnErrMsg struct {
	err error
}

// Model is the chat TUI state.
type Model struct {
	width  int
	height int
	ready  bool

	messages []chatMessage
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	waiting  bool

	keys   KeyMap
	styles Styles

	// submit runs one utterance through the orchestrator.
	submit func(utterance string) tea.Cmd
}

// NewModel creates the chat model. submit is invoked for each sent message
// and must return a command producing a responseMsg or turnErrMsg.
func NewModel(submit func(utterance string) tea.Cmd) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Focus()
	ta.CharLimit = 4096
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		messages: make([]chatMessage, 0),
		submit:   submit,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m = m.updateDimensions()

	case responseMsg:
		m.waiting = false
		m.messages = append(m.messages, chatMessage{
			role:      "assistant",
			content:   msg.content,
			timestamp: time.Now(),
		})
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()

	case turnErrMsg:
		m.waiting = false
		m.messages = append(m.messages, chatMessage{
			role:      "system",
			content:   "error: " + msg.err.Error(),
			timestamp: time.Now(),
		})
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Clear):
		m.messages = make([]chatMessage, 0)
		m.viewport.SetContent("")
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.handleSend()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleSend() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.textarea.Value())
	if content == "" || m.waiting {
		return m, nil
	}

	m.messages = append(m.messages, chatMessage{
		role:      "user",
		content:   content,
		timestamp: time.Now(),
	})
	m.textarea.Reset()
	m.waiting = true
	m.viewport.SetContent(m.renderChat())
	m.viewport.GotoBottom()

	cmds := []tea.Cmd{m.spinner.Tick}
	if m.submit != nil {
		cmds = append(cmds, m.submit(content))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateDimensions() Model {
	headerHeight := 2
	statusHeight := 1
	inputHeight := 3
	padding := 2

	chatHeight := m.height - headerHeight - statusHeight - inputHeight - padding
	if chatHeight < 1 {
		chatHeight = 1
	}

	m.viewport.Width = m.width - 4
	m.viewport.Height = chatHeight
	m.textarea.SetWidth(m.width - 4)

	return m
}

func (m Model) renderChat() string {
	var sb strings.Builder

	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(m.styles.UserMsg.Render("You: "))
			sb.WriteString(msg.content)
		case "assistant":
			sb.WriteString(m.styles.BotMsg.Render("Sage: "))
			sb.WriteString(msg.content)
		default:
			sb.WriteString(m.styles.SystemMsg.Render(msg.content))
		}
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Starting Sage..."
	}

	header := m.styles.Header.Render("Sage")

	status := ""
	if m.waiting {
		status = m.styles.Status.Render(m.spinner.View() + " thinking...")
	} else {
		status = m.styles.Status.Render("enter: send | ctrl+l: clear | ctrl+c: quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.Input.Render(m.textarea.View()),
		status,
	)
}
