package channels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/sage/internal/agent"
)

// fakeHandler returns scripted results keyed by utterance.
type fakeHandler struct {
	mu       sync.Mutex
	requests []*agent.TurnRequest
	result   agent.TurnResult
	err      error
}

func (h *fakeHandler) HandleTurn(_ context.Context, req *agent.TurnRequest) (agent.TurnResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	return h.result, h.err
}

func (h *fakeHandler) requestCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func startDispatcher(t *testing.T, ch *fakeChannel, handler TurnHandler) (*Router, context.CancelFunc) {
	t.Helper()

	r := NewRouter()
	r.Register(ch)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.StartAll(ctx))

	d := NewDispatcher(r, handler, nil)
	go d.Run(ctx)

	return r, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcherRepliesWithResponse(t *testing.T) {
	ch := newFakeChannel("telegram", true)
	handler := &fakeHandler{result: &agent.Response{Content: "here you go"}}
	_, cancel := startDispatcher(t, ch, handler)
	defer cancel()

	ch.Enqueue(&InboundMessage{
		ID:         "m1",
		UserID:     "user-1",
		Platform:   "telegram",
		ChannelRef: "chat-1",
		Content:    "hello",
	})

	waitFor(t, func() bool { return ch.sentCount() == 1 })

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Equal(t, "here you go", ch.sent[0].Content)
	assert.Equal(t, "m1", ch.sent[0].ReplyTo)
	assert.Equal(t, "chat-1", ch.sentTo[0])

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.requests, 1)
	assert.Equal(t, "user-1", handler.requests[0].UserID)
	assert.Equal(t, "hello", handler.requests[0].Utterance)
}

func TestDispatcherRepliesWithAck(t *testing.T) {
	ch := newFakeChannel("slack", true)
	handler := &fakeHandler{result: &agent.CodeChangeAck{Message: "logged for review"}}
	_, cancel := startDispatcher(t, ch, handler)
	defer cancel()

	ch.Enqueue(&InboundMessage{Platform: "slack", ChannelRef: "C1", UserID: "u", Content: "can you add x"})

	waitFor(t, func() bool { return ch.sentCount() == 1 })

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Equal(t, "logged for review", ch.sent[0].Content)
}

func TestDispatcherSendsFailureReply(t *testing.T) {
	ch := newFakeChannel("telegram", true)
	handler := &fakeHandler{err: errors.New("backend exhausted")}
	_, cancel := startDispatcher(t, ch, handler)
	defer cancel()

	ch.Enqueue(&InboundMessage{Platform: "telegram", ChannelRef: "chat-1", UserID: "u", Content: "hi"})

	waitFor(t, func() bool { return ch.sentCount() == 1 })

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Equal(t, failureReply, ch.sent[0].Content)
}

func TestDispatcherSerializesPerChannel(t *testing.T) {
	ch := newFakeChannel("telegram", true)
	handler := &fakeHandler{result: &agent.Response{Content: "ok"}}
	_, cancel := startDispatcher(t, ch, handler)
	defer cancel()

	for i := 0; i < 5; i++ {
		ch.Enqueue(&InboundMessage{Platform: "telegram", ChannelRef: "chat-1", UserID: "u", Content: "msg"})
	}

	waitFor(t, func() bool { return handler.requestCount() == 5 })
	waitFor(t, func() bool { return ch.sentCount() == 5 })
}
