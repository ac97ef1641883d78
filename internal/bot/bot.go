// Package bot is the Telegram transport: it maps updates onto game
// operations and formats outcomes back into chat messages. No game rules
// live here.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/character-hunt/internal/config"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/service"
	"github.com/character-hunt/internal/storage"
)

// Bot drives the Telegram update loop.
type Bot struct {
	api        *tgbotapi.BotAPI
	game       *service.GameService
	trades     *service.TradeService
	payments   *service.PaymentService
	redeems    *service.RedeemService
	characters *storage.CharacterRepository
	settings   *storage.ChatSettingsRepository

	adminIDs   map[int64]bool
	adminNames map[string]bool
	timeout    int
	logger     *logging.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a bot from an authorized API client
func New(
	cfg *config.Telegram,
	api *tgbotapi.BotAPI,
	game *service.GameService,
	trades *service.TradeService,
	payments *service.PaymentService,
	redeems *service.RedeemService,
	characters *storage.CharacterRepository,
	settings *storage.ChatSettingsRepository,
	logger *logging.Logger,
) *Bot {
	adminIDs := make(map[int64]bool, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		adminIDs[id] = true
	}
	adminNames := make(map[string]bool, len(cfg.AdminUsernames))
	for _, name := range cfg.AdminUsernames {
		adminNames[strings.ToLower(strings.TrimPrefix(name, "@"))] = true
	}

	return &Bot{
		api:        api,
		game:       game,
		trades:     trades,
		payments:   payments,
		redeems:    redeems,
		characters: characters,
		settings:   settings,
		adminIDs:   adminIDs,
		adminNames: adminNames,
		timeout:    cfg.UpdateTimeout,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Connect authorizes against the Bot API
func Connect(cfg *config.Telegram) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	return api, nil
}

// Start begins consuming updates. Blocks until Stop is called or the context
// is cancelled.
func (b *Bot) Start(ctx context.Context) {
	defer close(b.doneCh)

	b.logger.WithField("account", b.api.Self.UserName).Info("bot authorized, consuming updates")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop halts the update loop
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	close(b.stopCh)
	<-b.doneCh
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", fmt.Sprintf("%v", r)).Error("update handler panicked")
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.InlineQuery != nil:
		b.handleInlineQuery(ctx, update.InlineQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Plain chat traffic feeds the spawn counter
	b.handleChatter(ctx, msg)
}

func (b *Bot) isAdmin(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	if b.adminIDs[user.ID] {
		return true
	}
	return b.adminNames[strings.ToLower(user.UserName)]
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.WithError(err).Warn("failed to send message")
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	b.send(out)
}
