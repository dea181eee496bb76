package services

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramReporter notifies the operator when a worker hits a manual
// verification challenge and is paused waiting for a human.
type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramReporter(token string, chatID int64) (*TelegramReporter, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram not configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramReporter{bot: bot, chatID: chatID}, nil
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"
	_, err := t.bot.Send(msg)
	return err
}

// ReportChallenge asks the operator to complete a verification challenge
// for the given user's session.
func (t *TelegramReporter) ReportChallenge(userID int, sessionID, pageURL string) error {
	text := fmt.Sprintf(
		"⚠️ <b>Verification challenge</b>\nUser: %d\nSession: %s\nPage: %s\nThe worker is paused until the challenge is cleared.",
		userID, sessionID, pageURL,
	)
	return t.SendMessage(text)
}
