package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/normanking/sage/internal/brain"
	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/extract"
	"github.com/normanking/sage/internal/intent"
	"github.com/normanking/sage/internal/logging"
	"github.com/normanking/sage/internal/para"
	"github.com/normanking/sage/internal/retry"
	"github.com/normanking/sage/internal/store"
)

// Default orchestrator windows.
const (
	defaultHistoryLimit = 20 // turns loaded from the store
	defaultMemoryLimit  = 10 // memories folded into the prompt
	defaultPromptTurns  = 10 // history turns sent to the backend

	// changeContextTurns is the history slice attached to a code change
	// request; each message body is capped at changeContextRunes.
	changeContextTurns = 3
	changeContextRunes = 2000
)

// codeChangeAckMessage acknowledges a detected change request without a
// model call.
const codeChangeAckMessage = "I've logged that as a change request for review. You'll hear back once it has been looked at."

// Config wires a Manager's collaborators and tuning.
type Config struct {
	Store    store.Store
	Brain    brain.Brain
	Provider para.Provider // nil disables external context gathering
	Sink     retry.Sink
	Logger   *logging.Logger

	Model config.ModelConfig
	Retry retry.Policy // zero value uses the default policy

	HistoryLimit int
	MemoryLimit  int
	PromptTurns  int
}

// Manager sequences one turn: load, fetch, classify, detect, gather,
// generate, extract, persist. Turns are stateless across invocations except
// through the records they read and write; turns for the same conversation
// must be serialized by the caller.
type Manager struct {
	store    store.Store
	brain    brain.Brain
	provider para.Provider
	sink     retry.Sink
	logger   *logging.Logger

	model  config.ModelConfig
	policy retry.Policy

	historyLimit int
	memoryLimit  int
	promptTurns  int
}

// New creates a Manager from its collaborators.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	m := &Manager{
		store:        cfg.Store,
		brain:        cfg.Brain,
		provider:     cfg.Provider,
		sink:         cfg.Sink,
		logger:       logger.Component("agent"),
		model:        cfg.Model,
		policy:       policy,
		historyLimit: cfg.HistoryLimit,
		memoryLimit:  cfg.MemoryLimit,
		promptTurns:  cfg.PromptTurns,
	}
	if m.historyLimit <= 0 {
		m.historyLimit = defaultHistoryLimit
	}
	if m.memoryLimit <= 0 {
		m.memoryLimit = defaultMemoryLimit
	}
	if m.promptTurns <= 0 {
		m.promptTurns = defaultPromptTurns
	}
	return m
}

// HandleTurn runs one utterance through the pipeline and returns either a
// *Response or a *CodeChangeAck. A failed turn leaves the already persisted
// user message in place; the caller may retry the turn.
func (m *Manager) HandleTurn(ctx context.Context, req *TurnRequest) (TurnResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// LOAD: resolve or create the conversation, persist the user message.
	conv, err := m.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg, err := m.store.AppendMessage(ctx, conv.ID, store.RoleUser, req.Utterance, store.MessageMeta{})
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	// FETCH: recent history and the most relevant memories. The retrieval
	// bumps memory access stats as a side effect.
	history, err := m.store.RecentMessages(ctx, conv.ID, m.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	history = dropMessage(history, userMsg.ID)

	memories, err := m.store.RelevantMemories(ctx, req.UserID, req.Utterance, m.memoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}

	// CLASSIFY / CODE_CHECK: route the utterance. A detected change request
	// short-circuits the turn before any model call.
	decision := intent.Classify(req.Utterance)

	if detection := intent.Detect(req.Utterance); detection.Detected {
		return m.createCodeChange(ctx, conv, req, history, detection)
	}

	// CONTEXT: gather external context when the classifier asks for it.
	var gathered *para.Context
	if decision.RequiresContext && m.provider != nil {
		gathered, err = m.provider.Gather(ctx, req.Utterance, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("context gathering failed: %w", err)
		}
	}

	// GENERATE: one model call under the retry policy. Exhaustion is fatal
	// for the turn.
	prompt := composePrompt(gathered, memories, history, req.Utterance, m.promptTurns)
	completion, err := retry.Do(ctx, m.policy, m.sink, "model.complete", func(ctx context.Context) (*brain.CompleteResponse, error) {
		return m.brain.Complete(ctx, &brain.CompleteRequest{
			Messages:    prompt,
			Model:       m.model.Model,
			Temperature: m.model.Temperature,
			MaxTokens:   m.model.MaxTokens,
		})
	})
	if err != nil {
		return nil, err
	}

	// EXTRACT: persist memory candidates from the exchange.
	candidates := extract.Extract(req.Utterance, completion.Content)
	for _, cand := range candidates {
		if _, err := m.store.AppendMemory(ctx, req.UserID, cand.Type, cand.Content, cand.Importance); err != nil {
			return nil, fmt.Errorf("failed to persist memory: %w", err)
		}
	}

	// PERSIST: assistant message and conversation activity.
	meta := store.MessageMeta{
		AgentType:       "sage",
		ContextUsed:     !gathered.Empty(),
		MemoryExtracted: len(candidates) > 0,
	}
	if _, err := m.store.AppendMessage(ctx, conv.ID, store.RoleAssistant, completion.Content, meta); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := m.store.TouchConversation(ctx, conv.ID); err != nil {
		return nil, fmt.Errorf("failed to update conversation activity: %w", err)
	}

	m.logger.Debug("turn completed",
		"conversation", conv.ID,
		"label", decision.Label,
		"context_used", meta.ContextUsed,
		"memories_extracted", len(candidates),
	)

	return &Response{
		ConversationID:    conv.ID,
		Content:           completion.Content,
		MemoriesExtracted: len(candidates),
	}, nil
}

// resolveConversation loads the referenced conversation, or resolves or
// creates one on the referenced platform channel.
func (m *Manager) resolveConversation(ctx context.Context, req *TurnRequest) (*store.Conversation, error) {
	ref := req.Conversation

	if ref.existing {
		conv, err := m.store.GetConversation(ctx, ref.id)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation %s: %w", ref.id, err)
		}
		return conv, nil
	}

	conv, err := m.store.FindConversation(ctx, req.UserID, ref.platform, ref.channelRef)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	conv, err = m.store.CreateConversation(ctx, req.UserID, ref.platform, ref.channelRef)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	m.logger.Info("conversation started",
		"conversation", conv.ID,
		"platform", ref.platform,
	)
	return conv, nil
}

// createCodeChange persists the detected request with a slice of recent
// history and exits the turn. At most one request is created per turn, and
// no model call or memory extraction happens on this path.
func (m *Manager) createCodeChange(ctx context.Context, conv *store.Conversation, req *TurnRequest, history []store.Message, detection intent.Detection) (TurnResult, error) {
	contextJSON, err := serializeChangeContext(history)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request context: %w", err)
	}

	change, err := m.store.CreateCodeChangeRequest(ctx, req.UserID, req.Utterance, contextJSON, detection.Priority, detection.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to create code change request: %w", err)
	}

	m.logger.Info("code change request created",
		"request", change.ID,
		"category", detection.Category,
		"priority", detection.Priority,
	)

	return &CodeChangeAck{
		ConversationID: conv.ID,
		RequestID:      change.ID,
		Message:        codeChangeAckMessage,
	}, nil
}

// serializeChangeContext captures the last few history turns as reviewer
// context, truncating oversized message bodies.
func serializeChangeContext(history []store.Message) (string, error) {
	if len(history) > changeContextTurns {
		history = history[len(history)-changeContextTurns:]
	}

	type turn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	turns := make([]turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, turn{
			Role:    string(msg.Role),
			Content: truncateRunes(msg.Content, changeContextRunes),
		})
	}

	raw, err := json.Marshal(turns)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// truncateRunes caps s at n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// dropMessage removes the message with the given id. The user message is
// persisted before history is fetched, so the fetch includes it; the prompt
// appends the utterance itself.
func dropMessage(history []store.Message, id string) []store.Message {
	out := history[:0]
	for _, msg := range history {
		if msg.ID != id {
			out = append(out, msg)
		}
	}
	return out
}

// validateRequest rejects malformed input before any store mutation.
func validateRequest(req *TurnRequest) error {
	if req == nil {
		return &store.ValidationError{Field: "request", Reason: "must not be nil"}
	}
	if req.UserID == "" {
		return &store.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if req.Utterance == "" {
		return &store.ValidationError{Field: "utterance", Reason: "must not be empty"}
	}
	ref := req.Conversation
	if ref.existing && ref.id == "" {
		return &store.ValidationError{Field: "conversation_id", Reason: "must not be empty"}
	}
	if !ref.existing && ref.platform == "" {
		return &store.ValidationError{Field: "platform", Reason: "must not be empty"}
	}
	return nil
}
