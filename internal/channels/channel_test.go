package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel is a channel adapter backed by plain slices.
type fakeChannel struct {
	*BaseChannel

	mu      sync.Mutex
	sent    []*OutboundMessage
	sentTo  []string
	started bool
	stopped bool
}

func newFakeChannel(name string, enabled bool) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, enabled)}
}

func (f *fakeChannel) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeChannel) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeChannel) Send(channelRef string, msg *OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentTo = append(f.sentTo, channelRef)
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestRouterStartsOnlyEnabledChannels(t *testing.T) {
	r := NewRouter()
	on := newFakeChannel("telegram", true)
	off := newFakeChannel("discord", false)
	r.Register(on)
	r.Register(off)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.StartAll(ctx))

	assert.True(t, on.started)
	assert.False(t, off.started)
}

func TestRouterAggregatesInbound(t *testing.T) {
	r := NewRouter()
	tg := newFakeChannel("telegram", true)
	sl := newFakeChannel("slack", true)
	r.Register(tg)
	r.Register(sl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.StartAll(ctx))

	tg.Enqueue(&InboundMessage{Platform: "telegram", Content: "from telegram"})
	sl.Enqueue(&InboundMessage{Platform: "slack", Content: "from slack"})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-r.Incoming():
			got[msg.Platform] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for aggregated message")
		}
	}
	assert.True(t, got["telegram"])
	assert.True(t, got["slack"])
}

func TestRouterSend(t *testing.T) {
	r := NewRouter()
	tg := newFakeChannel("telegram", true)
	off := newFakeChannel("discord", false)
	r.Register(tg)
	r.Register(off)

	require.NoError(t, r.Send("telegram", "chat-1", &OutboundMessage{Content: "hi"}))
	require.Len(t, tg.sent, 1)
	assert.Equal(t, "chat-1", tg.sentTo[0])

	assert.ErrorIs(t, r.Send("discord", "c", &OutboundMessage{}), ErrChannelDisabled)
	assert.ErrorIs(t, r.Send("matrix", "c", &OutboundMessage{}), ErrChannelNotFound)
}

func TestRouterStopAll(t *testing.T) {
	r := NewRouter()
	tg := newFakeChannel("telegram", true)
	r.Register(tg)

	require.NoError(t, r.StopAll())
	assert.True(t, tg.stopped)
}

func TestBaseChannelEnqueueDropsWhenFull(t *testing.T) {
	b := NewBaseChannel("test", true)

	dropped := false
	for i := 0; i < 200; i++ {
		if !b.Enqueue(&InboundMessage{Content: "x"}) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "a full buffer drops instead of blocking")
}
