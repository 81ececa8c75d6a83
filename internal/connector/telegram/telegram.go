package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maitre-io/maitre/internal/connector"
	"github.com/maitre-io/maitre/pkg/protocol"
)

// Config holds Telegram notifier configuration.
type Config struct {
	Token    string  // Bot token from @BotFather
	ChatIDs  []int64 // chats receiving floor events
	Endpoint string  // optional API endpoint format, defaults to tgbotapi.APIEndpoint
}

// Notifier sends floor events to Telegram chats.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chats  []int64
	logger *slog.Logger
}

// New authorizes the bot and creates a notifier.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("telegram: at least one chat_id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName, "chats", len(cfg.ChatIDs))

	return &Notifier{bot: bot, chats: cfg.ChatIDs, logger: logger}, nil
}

func (n *Notifier) Name() string { return "telegram" }

// Notify sends ev to every configured chat. A chat that rejects the HTML
// rendering gets the plain text instead.
func (n *Notifier) Notify(ctx context.Context, ev protocol.Event) error {
	md := connector.Format(ev)
	var firstErr error
	for _, chatID := range n.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, MarkdownToTelegramHTML(md))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		_, err := n.bot.Send(msg)
		if err != nil {
			n.logger.Warn("HTML send failed, falling back to plain text", "chat_id", chatID, "error", err)
			msg.Text = StripMarkdown(md)
			msg.ParseMode = ""
			_, err = n.bot.Send(msg)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telegram: send to %d: %w", chatID, err)
		}
	}
	return firstErr
}
