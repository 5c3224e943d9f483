// Package telegram wraps the bot API used for admin notifications.
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	T         *tgbotapi.BotAPI
	adminChat int64
}

func New(token string, adminChat int64) (*Bot, error) {
	t, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{T: t, adminChat: adminChat}, nil
}

// Notify sends a markdown message directly to the administrator chat.
func (b *Bot) Notify(text string) error {
	msg := tgbotapi.NewMessage(b.adminChat, text)
	msg.ParseMode = "markdown"
	_, err := b.T.Send(msg)
	return err
}

func (b *Bot) Close() error {
	b.T.StopReceivingUpdates()
	return nil
}
