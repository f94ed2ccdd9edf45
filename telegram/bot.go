package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/okralab/optionbot/game"
	"github.com/okralab/optionbot/oracle"
	"github.com/okralab/optionbot/telemetry"
)

// Bot runs the long-poll update loop and dispatches commands to the game
// engine and the oracles.
type Bot struct {
	api       *tgbotapi.BotAPI
	transport *Transport
	games     *game.Manager
	router    *oracle.RouterClient
	images    *oracle.ImageClient
	botNames  []string
}

// NewBot assembles a bot. images may be nil to disable image generation.
func NewBot(api *tgbotapi.BotAPI, games *game.Manager, router *oracle.RouterClient, images *oracle.ImageClient, botNames []string) *Bot {
	return &Bot{
		api:       api,
		transport: NewTransport(api),
		games:     games,
		router:    router,
		images:    images,
		botNames:  botNames,
	}
}

// Run consumes updates until ctx is cancelled. Each update is handled in its
// own goroutine so a slow oracle round-trip doesn't stall the loop.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	slog.Info("telegram update loop started", slog.String("bot", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("telegram update loop stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg := upd.Message
			if msg == nil || msg.Text == "" {
				continue
			}
			if msg.From != nil && msg.From.ID == b.api.Self.ID {
				continue
			}
			go b.handle(ctx, msg)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "telegram"), slog.Int64("chat_id", msg.Chat.ID))
	telemetry.MessagesDispatched.Inc()

	p := Parse(msg.Text)
	switch p.Kind {
	case KindGame:
		if _, err := b.games.StartGame(ctx, msg.Chat.ID, p.Asset, p.Timeframe); err != nil {
			logger.Error("game start failed", slog.String("asset", p.Asset), slog.Any("err", err))
		}
	case KindCheck:
		if _, err := b.games.CheckResults(ctx, msg.Chat.ID, p.Asset); err != nil {
			logger.Error("game check failed", slog.String("asset", p.Asset), slog.Any("err", err))
		}
	case KindPrice, KindAsk, KindNews:
		b.answerQuery(ctx, msg.Chat.ID, p.Query, logger)
	case KindImage:
		b.generateImage(ctx, msg.Chat.ID, p.Prompt, logger)
	case KindNone:
		if IsAddressedToBot(msg.Text, b.botNames) {
			b.answerQuery(ctx, msg.Chat.ID, strings.TrimSpace(msg.Text), logger)
		}
	}
}

// answerQuery routes a free-form question through the query router and sends
// the answer back to the chat.
func (b *Bot) answerQuery(ctx context.Context, chatID int64, query string, logger *slog.Logger) {
	answer, err := b.router.Query(ctx, query)
	if err != nil {
		telemetry.IncOracleError("router")
		logger.Error("router query failed", slog.Any("err", err))
		b.reply(ctx, chatID, "⚠️ I could not answer that right now, try again later.")
		return
	}
	b.reply(ctx, chatID, answer)
}

func (b *Bot) generateImage(ctx context.Context, chatID int64, prompt string, logger *slog.Logger) {
	if b.images == nil {
		b.reply(ctx, chatID, "Image generation is not configured.")
		return
	}
	url, err := b.images.Generate(ctx, prompt)
	if err != nil {
		telemetry.IncOracleError("imagegen")
		logger.Error("image generation failed", slog.Any("err", err))
		b.reply(ctx, chatID, "⚠️ Image generation failed, try again later.")
		return
	}
	if err := b.transport.SendPhoto(ctx, chatID, url, prompt); err != nil {
		logger.Error("photo delivery failed", slog.Any("err", err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.transport.SendText(ctx, chatID, text); err != nil {
		slog.Warn("reply undeliverable", slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
}
