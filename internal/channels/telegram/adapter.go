// Package telegram provides the Telegram channel adapter for Sage.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/normanking/sage/internal/channels"
	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/logging"
)

// Adapter implements channels.Channel for Telegram long polling.
type Adapter struct {
	*channels.BaseChannel

	cfg    config.TelegramConfig
	bot    *tgbotapi.BotAPI
	logger *logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a Telegram adapter.
func New(cfg config.TelegramConfig, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Adapter{
		BaseChannel: channels.NewBaseChannel("telegram", cfg.Enabled),
		cfg:         cfg,
		logger:      logger.Component("telegram"),
	}
}

// Start authorizes the bot and begins polling for updates.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	if a.cfg.Token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	bot, err := tgbotapi.NewBotAPI(a.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	a.bot = bot
	a.logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	go a.receiveUpdates(ctx)
	return nil
}

// Stop ends update polling.
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
	a.logger.Info("telegram adapter stopped")
	return nil
}

// Send delivers a message to a Telegram chat.
func (a *Adapter) Send(channelRef string, msg *channels.OutboundMessage) error {
	chatID, err := strconv.ParseInt(channelRef, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", channelRef, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.Format == channels.FormatMarkdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	if msg.ReplyTo != "" {
		if replyID, err := strconv.Atoi(msg.ReplyTo); err == nil {
			out.ReplyToMessageID = replyID
		}
	}

	_, err = a.bot.Send(out)
	return err
}

func (a *Adapter) receiveUpdates(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message != nil {
				a.handleMessage(update.Message)
			}
		}
	}
}

func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}

	inbound := &channels.InboundMessage{
		ID:         strconv.Itoa(msg.MessageID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Platform:   "telegram",
		ChannelRef: strconv.FormatInt(msg.Chat.ID, 10),
		Content:    msg.Text,
		Metadata: map[string]string{
			"username": msg.From.UserName,
		},
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}
	if msg.ReplyToMessage != nil {
		inbound.ReplyTo = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}

	if !a.Enqueue(inbound) {
		a.logger.Warn("incoming message buffer full, dropping message", "chat", inbound.ChannelRef)
	}
}
