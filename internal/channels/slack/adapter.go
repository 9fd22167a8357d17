// Package slack provides the Slack channel adapter for Sage, using Socket
// Mode for real-time events.
package slack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/normanking/sage/internal/channels"
	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/logging"
)

// Adapter implements channels.Channel for Slack.
type Adapter struct {
	*channels.BaseChannel

	cfg    config.SlackConfig
	client *slack.Client
	socket *socketmode.Client
	logger *logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a Slack adapter.
func New(cfg config.SlackConfig, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Adapter{
		BaseChannel: channels.NewBaseChannel("slack", cfg.Enabled),
		cfg:         cfg,
		logger:      logger.Component("slack"),
	}
}

// Start connects the Socket Mode client and begins handling events.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	if a.cfg.Token == "" {
		return fmt.Errorf("slack bot token not configured")
	}
	if a.cfg.AppToken == "" {
		return fmt.Errorf("slack app token required for socket mode")
	}

	a.client = slack.New(
		a.cfg.Token,
		slack.OptionAppLevelToken(a.cfg.AppToken),
	)
	a.socket = socketmode.New(a.client)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("slack socket loop ended", "error", err)
		}
	}()

	return nil
}

// Stop disconnects the Socket Mode client.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.running = false
	a.logger.Info("slack adapter stopped")
	return nil
}

// Send delivers a message to a Slack channel.
func (a *Adapter) Send(channelRef string, msg *channels.OutboundMessage) error {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}

	_, _, err := a.client.PostMessage(channelRef, opts...)
	return err
}

func (a *Adapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-a.socket.Events:
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				a.handleEventsAPI(evt)
			case socketmode.EventTypeConnecting:
				a.logger.Debug("connecting to slack")
			case socketmode.EventTypeConnected:
				a.logger.Info("connected to slack")
			case socketmode.EventTypeConnectionError:
				a.logger.Error("slack connection error")
			}
		}
	}
}

func (a *Adapter) handleEventsAPI(evt socketmode.Event) {
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if evt.Request != nil {
		a.socket.Ack(*evt.Request)
	}

	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore bot messages and edits.
	if ev.BotID != "" || ev.SubType != "" || ev.Text == "" {
		return
	}

	inbound := &channels.InboundMessage{
		ID:         ev.TimeStamp,
		UserID:     ev.User,
		Platform:   "slack",
		ChannelRef: ev.Channel,
		Content:    ev.Text,
		ReplyTo:    ev.ThreadTimeStamp,
		Metadata: map[string]string{
			"team": apiEvent.TeamID,
		},
		ReceivedAt: time.Now(),
	}

	if !a.Enqueue(inbound) {
		a.logger.Warn("incoming message buffer full, dropping message", "channel", ev.Channel)
	}
}
