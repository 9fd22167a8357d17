// Package agent implements Sage's orchestrator: the per-turn pipeline from
// user utterance to typed result.
package agent

// ConversationRef identifies where a turn's messages belong: an existing
// conversation by id, or a platform channel in which a conversation is
// resolved or created. Construct with ExistingConversation or
// NewConversation.
type ConversationRef struct {
	id         string
	platform   string
	channelRef string
	existing   bool
}

// ExistingConversation refers to a conversation by id.
func ExistingConversation(id string) ConversationRef {
	return ConversationRef{id: id, existing: true}
}

// NewConversation refers to a platform channel; the turn resolves the most
// recent active conversation there or starts one.
func NewConversation(platform, channelRef string) ConversationRef {
	return ConversationRef{platform: platform, channelRef: channelRef}
}

// TurnRequest is one user utterance entering the pipeline.
type TurnRequest struct {
	UserID       string
	Utterance    string
	Conversation ConversationRef
}

// TurnResult is the discriminated outcome of a turn: either a *Response or
// a *CodeChangeAck.
type TurnResult interface {
	turnResult()
}

// Response is a normal completed turn.
type Response struct {
	ConversationID    string
	Content           string
	MemoriesExtracted int
}

func (*Response) turnResult() {}

// CodeChangeAck is the short-circuit outcome when the utterance was detected
// as a code change request. No model call happened and no memories were
// extracted.
type CodeChangeAck struct {
	ConversationID string
	RequestID      string
	Message        string
}

func (*CodeChangeAck) turnResult() {}
