package alert

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TgmController sends operator alerts (fatal connection failures, pool
// resets) to a Telegram chat. A nil controller drops alerts silently,
// so alerting stays optional per deployment.
type TgmController struct {
	tgmBot *tgbotapi.BotAPI
	chatID int64
}

func NewTgmController(
	tgmBot *tgbotapi.BotAPI,
	chatID int64,
) *TgmController {
	return &TgmController{
		tgmBot: tgmBot,
		chatID: chatID,
	}
}

func (c *TgmController) Send(text string) error {
	if c == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, text)

	if _, err := c.tgmBot.Send(msg); err != nil {
		return err
	}

	return nil
}
