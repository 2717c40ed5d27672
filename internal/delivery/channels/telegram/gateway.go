// Package telegram bridges Telegram bot updates into the conversation
// engine and implements its outbound responder with plain messages and
// inline-keyboard menus. All chat-platform specifics stay inside this
// package.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"nudge/internal/bot"
	"nudge/internal/logging"
	"nudge/internal/session"
)

const (
	callbackDedupCacheSize = 1024
	longPollTimeoutSeconds = 30
)

// Config holds the Telegram credentials and polling knobs.
type Config struct {
	Token string
	Debug bool
}

// Gateway receives Telegram updates over long polling and translates them
// into engine events. Updates arrive on a single channel and are handled
// sequentially, which is the per-user no-overlap guarantee the engine
// relies on.
type Gateway struct {
	api    *tgbotapi.BotAPI
	engine *bot.Engine
	logger logging.Logger

	// Telegram can redeliver callback queries; remember recently answered
	// ids so a redelivery does not replay a delete twice.
	dedup *lru.Cache[string, time.Time]

	now func() time.Time
}

// NewGateway constructs a gateway and authorizes against the bot API. The
// engine is attached in Run: the gateway is built first so it can serve as
// the engine's responder.
func NewGateway(cfg Config, logger logging.Logger) (*Gateway, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram gateway requires a bot token")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	api.Debug = cfg.Debug

	dedup, err := lru.New[string, time.Time](callbackDedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("telegram callback deduper init: %w", err)
	}

	logger = logging.OrNop(logger)
	logger.Info("telegram: authorized as @%s", api.Self.UserName)

	return &Gateway{
		api:    api,
		logger: logger,
		dedup:  dedup,
		now:    time.Now,
	}, nil
}

// Run polls for updates and feeds them to engine until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, engine *bot.Engine) error {
	if engine == nil {
		return fmt.Errorf("telegram gateway requires an engine")
	}
	g.engine = engine

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = longPollTimeoutSeconds
	updates := g.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			g.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			g.handleUpdate(ctx, update)
		}
	}
}

func (g *Gateway) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		g.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		g.handleMessage(ctx, update.Message)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	g.engine.HandleText(ctx, bot.TextEvent{
		User: userID(msg.Chat.ID),
		Name: msg.Chat.FirstName,
		Text: msg.Text,
	})
}

func (g *Gateway) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	if seen, _ := g.dedup.ContainsOrAdd(cq.ID, g.now()); seen {
		g.logger.Debug("telegram: dropping redelivered callback %s", cq.ID)
		return
	}

	// Ack first so the client stops its spinner even if handling is slow.
	if _, err := g.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		g.logger.Warn("telegram: answer callback %s failed: %v", cq.ID, err)
	}

	g.engine.HandleButton(ctx, bot.ButtonEvent{
		User: userID(cq.Message.Chat.ID),
		Tag:  cq.Data,
	})
}

// Notify sends plain text to a user.
func (g *Gateway) Notify(_ context.Context, user session.UserID, text string) error {
	chatID, err := chatID(user)
	if err != nil {
		return err
	}
	if _, err := g.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// NotifyWithOptions sends text with an inline keyboard, one button per
// option, one option per row, preserving order.
func (g *Gateway) NotifyWithOptions(_ context.Context, user session.UserID, text string, options []bot.Option) error {
	chatID, err := chatID(user)
	if err != nil {
		return err
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Tag),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := g.api.Send(msg); err != nil {
		return fmt.Errorf("telegram menu send: %w", err)
	}
	return nil
}

func userID(chat int64) session.UserID {
	return session.UserID(strconv.FormatInt(chat, 10))
}

func chatID(user session.UserID) (int64, error) {
	id, err := strconv.ParseInt(string(user), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram chat id %q: %w", user, err)
	}
	return id, nil
}
