// Package discord provides the Discord channel adapter for Sage.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/normanking/sage/internal/channels"
	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/logging"
)

// Adapter implements channels.Channel for Discord gateway events.
type Adapter struct {
	*channels.BaseChannel

	cfg     config.DiscordConfig
	session *discordgo.Session
	logger  *logging.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Discord adapter.
func New(cfg config.DiscordConfig, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Adapter{
		BaseChannel: channels.NewBaseChannel("discord", cfg.Enabled),
		cfg:         cfg,
		logger:      logger.Component("discord"),
	}
}

// Start opens the gateway session and registers the message handler.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	if a.cfg.Token == "" {
		return fmt.Errorf("discord token not configured")
	}

	session, err := discordgo.New("Bot " + a.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(a.handleMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	a.session = session
	a.running = true
	a.logger.Info("discord bot connected", "username", session.State.User.Username)
	return nil
}

// Stop closes the gateway session.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	if a.session != nil {
		if err := a.session.Close(); err != nil {
			return err
		}
	}
	a.logger.Info("discord adapter stopped")
	return nil
}

// Send delivers a message to a Discord channel.
func (a *Adapter) Send(channelRef string, msg *channels.OutboundMessage) error {
	out := &discordgo.MessageSend{Content: msg.Content}
	if msg.ReplyTo != "" {
		out.Reference = &discordgo.MessageReference{
			MessageID: msg.ReplyTo,
			ChannelID: channelRef,
		}
	}

	_, err := a.session.ChannelMessageSendComplex(channelRef, out)
	return err
}

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore the bot's own messages.
	if m.Author.ID == s.State.User.ID {
		return
	}
	if m.Content == "" {
		return
	}

	inbound := &channels.InboundMessage{
		ID:         m.ID,
		UserID:     m.Author.ID,
		Platform:   "discord",
		ChannelRef: m.ChannelID,
		Content:    m.Content,
		Metadata: map[string]string{
			"username": m.Author.Username,
			"guild":    m.GuildID,
		},
		ReceivedAt: time.Now(),
	}
	if m.MessageReference != nil {
		inbound.ReplyTo = m.MessageReference.MessageID
	}

	if !a.Enqueue(inbound) {
		a.logger.Warn("incoming message buffer full, dropping message", "channel", m.ChannelID)
	}
}
