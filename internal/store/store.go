// Package store implements Sage's durable record store: conversations,
// messages, memories, and code change requests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports input rejected before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationPaused   ConversationStatus = "paused"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation groups the messages exchanged with one user on one platform
// channel. The core never deletes conversations; archival is external policy.
type Conversation struct {
	ID             string
	UserID         string
	Platform       string // "telegram", "discord", "slack", "tui"
	ChannelRef     string // platform-specific channel/chat identifier
	Status         ConversationStatus
	StartedAt      time.Time
	LastActivityAt time.Time
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageMeta carries optional per-message annotations.
type MessageMeta struct {
	AgentType       string `json:"agent_type,omitempty"`
	ContextUsed     bool   `json:"context_used,omitempty"`
	MemoryExtracted bool   `json:"memory_extracted,omitempty"`
}

// Message is one turn half inside a conversation. Immutable once written,
// ordered by creation time.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Meta           MessageMeta
	CreatedAt      time.Time
}

// MemoryType categorizes durable memories.
type MemoryType string

const (
	MemoryPreference MemoryType = "preference"
	MemoryFact       MemoryType = "fact"
	MemoryPattern    MemoryType = "pattern"
	MemoryGoal       MemoryType = "goal"
)

// Memory is a durable, scored fact about a user, used to personalize prompts.
// Mutated only by extraction appending entries and retrieval bumping access
// stats.
type Memory struct {
	ID           string
	UserID       string
	Type         MemoryType
	Content      string
	Reference    string // optional link to a contextual record
	Importance   float64
	AccessCount  int
	LastAccessed time.Time
	CreatedAt    time.Time
}

// ChangePriority ranks a code change request.
type ChangePriority string

const (
	PriorityLow    ChangePriority = "low"
	PriorityMedium ChangePriority = "medium"
	PriorityHigh   ChangePriority = "high"
)

// ChangeCategory classifies a code change request.
type ChangeCategory string

const (
	CategoryFeature     ChangeCategory = "feature"
	CategoryBugfix      ChangeCategory = "bugfix"
	CategoryRefactor    ChangeCategory = "refactor"
	CategoryIntegration ChangeCategory = "integration"
)

// ChangeStatus tracks a request through external review.
type ChangeStatus string

const (
	ChangePending     ChangeStatus = "pending"
	ChangeApproved    ChangeStatus = "approved"
	ChangeImplemented ChangeStatus = "implemented"
	ChangeDeclined    ChangeStatus = "declined"
)

// CodeChangeRequest records a detected feature/change request verbatim, with
// a slice of recent history for reviewer context. Status transitions are
// driven by an external reviewer, never by the turn pipeline.
type CodeChangeRequest struct {
	ID                  string
	UserID              string
	Request             string
	Context             string // serialized recent history slice
	Priority            ChangePriority
	Category            ChangeCategory
	Status              ChangeStatus
	CreatedAt           time.Time
	ImplementedAt       time.Time // zero until implemented
	ImplementationNotes string
}

// Store is the record store contract the orchestrator depends on. Each call
// is an independent, atomically applied write or read; the core never holds
// a multi-step transaction.
type Store interface {
	// CreateConversation starts a new active conversation for a user on a
	// platform channel and returns it.
	CreateConversation(ctx context.Context, userID, platform, channelRef string) (*Conversation, error)

	// GetConversation returns a conversation by id, or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// FindConversation returns the most recent active conversation for the
	// given platform channel, or ErrNotFound.
	FindConversation(ctx context.Context, userID, platform, channelRef string) (*Conversation, error)

	// AppendMessage persists a message and returns it.
	AppendMessage(ctx context.Context, conversationID string, role MessageRole, content string, meta MessageMeta) (*Message, error)

	// RecentMessages returns up to limit of the newest messages in a
	// conversation, ordered oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// RecentMemories returns up to limit memories for a user, most recent
	// first. As a side effect each returned memory's access count and
	// last-accessed timestamp are bumped exactly once.
	RecentMemories(ctx context.Context, userID string, limit int) ([]Memory, error)

	// RelevantMemories returns up to limit memories ranked by keyword
	// overlap with the query, importance, and recency. Access stats are
	// bumped the same way as RecentMemories.
	RelevantMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error)

	// AppendMemory persists a new memory. Importance must be in [0,1].
	AppendMemory(ctx context.Context, userID string, typ MemoryType, content string, importance float64) (*Memory, error)

	// CreateCodeChangeRequest persists a detected change request in pending
	// status and returns it.
	CreateCodeChangeRequest(ctx context.Context, userID, request, contextJSON string, priority ChangePriority, category ChangeCategory) (*CodeChangeRequest, error)

	// UpdateCodeChangeStatus applies an external reviewer's decision.
	UpdateCodeChangeStatus(ctx context.Context, id string, status ChangeStatus, notes string) error

	// TouchConversation updates a conversation's last-activity timestamp.
	TouchConversation(ctx context.Context, conversationID string) error

	// Close releases store resources.
	Close() error
}
