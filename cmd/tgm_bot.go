package main

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jayenashar/livrequant-toy/internal/alert"
)

func (a *App) initTgBot() error {
	if a.Config.TelegramApiToken == "" {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(a.Config.TelegramApiToken)
	if err != nil {
		return err
	}
	bot.Debug = false

	chatID, err := strconv.ParseInt(a.Config.TelegramChatID, 10, 64)
	if err != nil {
		return err
	}

	a.TGM = bot
	a.Alert = alert.NewTgmController(bot, chatID)

	return nil
}
