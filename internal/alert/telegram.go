package alert

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
)

// TelegramNotifier posts alerts into a single Telegram chat.
type TelegramNotifier struct {
	bot    *tgbot.Bot
	chatID int64
	log    logrus.FieldLogger
}

// NewTelegramNotifier creates the bot client. It fails if the token is rejected.
func NewTelegramNotifier(token string, chatID int64, logger logrus.FieldLogger, opts ...tgbot.Option) (*TelegramNotifier, error) {
	log := logger.WithField("component", "alert")

	b, err := tgbot.New(token, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.WithField("chat_id", chatID).Info("Telegram alerting enabled")
	return &TelegramNotifier{bot: b, chatID: chatID, log: log}, nil
}

// Notify sends text to the configured chat.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	_, err := n.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.log.WithError(err).Error("Failed to send alert")
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}
