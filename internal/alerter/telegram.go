package alerter

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

// TelegramAlerter sends operator alerts to a fixed chat.
type TelegramAlerter struct {
	logger *logger.Logger
	bot    *bot.Bot
	chatID string
}

func NewTelegramAlerter(logger *logger.Logger, token, chatID string) (*TelegramAlerter, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramAlerter{
		logger: logger,
		bot:    b,
		chatID: chatID,
	}, nil
}

func (t *TelegramAlerter) Send(subject, message string) {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   subject + "\n" + message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send telegram alert: ", err)
	}
}
