// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"giveaway-bot/internal/config"
	"giveaway-bot/internal/handler"
	"giveaway-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	// Handlers
	joinHandler  *handler.JoinHandler
	adminHandler *handler.AdminHandler
}

// New creates a new Bot instance. Handlers are registered separately with
// RegisterHandlers once the giveaway service exists, because the service
// announces through this bot.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Bot.PollTimeout},
		OnError: func(err error, c tele.Context) {
			event := log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				event = event.Int64("user_id", c.Sender().ID)
			}
			event.Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", teleBot.Me.Username).Msg("Telegram bot authorized")

	b := &Bot{
		bot: teleBot,
		cfg: cfg,
	}

	b.registerMiddleware()

	return b, nil
}

// ChannelNotifier resolves the configured channel and returns a notifier posting to it.
// It fails when the channel does not exist or the bot cannot see it.
func (b *Bot) ChannelNotifier() (*ChannelNotifier, error) {
	recipient := b.cfg.ChannelRecipient()
	chat, err := b.bot.ChatByUsername(recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel %s: %w", recipient, err)
	}

	log.Info().Int64("chat_id", chat.ID).Str("title", chat.Title).Msg("Announcement channel resolved")

	return NewChannelNotifier(b.bot, chat), nil
}

// RegisterHandlers wires the join button and admin commands to the giveaway service.
func (b *Bot) RegisterHandlers(giveaways *service.GiveawayService) {
	b.joinHandler = handler.NewJoinHandler(giveaways)
	b.adminHandler = handler.NewAdminHandler(giveaways)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/pickwinner", b.adminHandler.HandlePickWinner)
	adminGroup.Handle("/giveaways", b.adminHandler.HandleList)

	// Join buttons carry raw callback data, so they arrive on the generic callback endpoint.
	b.bot.Handle(tele.OnCallback, b.joinHandler.HandleJoin)
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
