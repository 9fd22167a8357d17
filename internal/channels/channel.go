// Package channels provides Sage's unified messaging channel layer.
//
// A Channel adapts one platform (Telegram, Discord, Slack, TUI) to a common
// inbound/outbound message shape. The Router aggregates inbound traffic from
// every enabled channel into one stream for the dispatcher.
package channels

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelDisabled = errors.New("channel is disabled")
)

// MessageFormat defines how outbound content should be rendered.
type MessageFormat string

const (
	FormatPlain    MessageFormat = "plain"
	FormatMarkdown MessageFormat = "markdown"
)

// InboundMessage is an incoming user message from any platform.
type InboundMessage struct {
	ID         string
	UserID     string
	Platform   string // "telegram", "discord", "slack", "tui"
	ChannelRef string // platform-specific channel/chat identifier
	Content    string
	ReplyTo    string
	Metadata   map[string]string
	ReceivedAt time.Time
}

// OutboundMessage is a reply to deliver on a platform channel.
type OutboundMessage struct {
	Content string
	Format  MessageFormat
	ReplyTo string
}

// Channel is the contract every platform adapter implements.
type Channel interface {
	Name() string
	Enabled() bool

	// Start begins receiving platform events. It returns once the adapter
	// is connected; delivery continues until Stop or context cancellation.
	Start(ctx context.Context) error
	Stop() error

	// Send delivers a message to a platform channel.
	Send(channelRef string, msg *OutboundMessage) error

	// Incoming is the adapter's stream of received messages.
	Incoming() <-chan *InboundMessage
}

// Router aggregates inbound messages from all registered channels and routes
// outbound replies back to the right adapter.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
	incoming chan *InboundMessage
	done     chan struct{}
}

// NewRouter creates an empty channel router.
func NewRouter() *Router {
	return &Router{
		channels: make(map[string]Channel),
		incoming: make(chan *InboundMessage, 100),
		done:     make(chan struct{}),
	}
}

// Register adds a channel to the router.
func (r *Router) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Get retrieves a channel by name.
func (r *Router) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Incoming returns the unified stream of messages from all channels.
func (r *Router) Incoming() <-chan *InboundMessage {
	return r.incoming
}

// StartAll starts every enabled channel and begins aggregating their inbound
// streams.
func (r *Router) StartAll(ctx context.Context) error {
	r.mu.RLock()
	enabled := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.Enabled() {
			enabled = append(enabled, ch)
		}
	}
	r.mu.RUnlock()

	for _, ch := range enabled {
		if err := ch.Start(ctx); err != nil {
			return err
		}
	}

	for _, ch := range enabled {
		go r.aggregate(ctx, ch)
	}

	return nil
}

// aggregate forwards one channel's inbound stream to the unified stream.
func (r *Router) aggregate(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case msg, ok := <-ch.Incoming():
			if !ok {
				return
			}
			select {
			case r.incoming <- msg:
			case <-ctx.Done():
				return
			case <-r.done:
				return
			}
		}
	}
}

// StopAll stops every registered channel.
func (r *Router) StopAll() error {
	close(r.done)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, ch := range r.channels {
		if err := ch.Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Send delivers a message through a named channel.
func (r *Router) Send(platform, channelRef string, msg *OutboundMessage) error {
	ch, ok := r.Get(platform)
	if !ok {
		return ErrChannelNotFound
	}
	if !ch.Enabled() {
		return ErrChannelDisabled
	}
	return ch.Send(channelRef, msg)
}

// BaseChannel carries the state common to every adapter.
type BaseChannel struct {
	name     string
	enabled  bool
	incoming chan *InboundMessage
}

// NewBaseChannel creates the shared adapter state.
func NewBaseChannel(name string, enabled bool) *BaseChannel {
	return &BaseChannel{
		name:     name,
		enabled:  enabled,
		incoming: make(chan *InboundMessage, 100),
	}
}

// Name returns the channel name.
func (b *BaseChannel) Name() string {
	return b.name
}

// Enabled reports whether the channel is enabled.
func (b *BaseChannel) Enabled() bool {
	return b.enabled
}

// Incoming returns the adapter's inbound stream.
func (b *BaseChannel) Incoming() <-chan *InboundMessage {
	return b.incoming
}

// Enqueue adds a message to the inbound stream, dropping it if the buffer is
// full rather than blocking the platform event loop.
func (b *BaseChannel) Enqueue(msg *InboundMessage) bool {
	select {
	case b.incoming <- msg:
		return true
	default:
		return false
	}
}

// CloseIncoming closes the inbound stream.
func (b *BaseChannel) CloseIncoming() {
	close(b.incoming)
}
