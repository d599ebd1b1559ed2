package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/ic2hrmk/promtail"
	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/alert"
	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
)

const appName = "order-ledger"

type App struct {
	Config   *Config
	Logger   *logrus.Logger
	PromTail promtail.Client
	TGM      *tgbotapi.BotAPI
	Alert    *alert.TgmController
	Pool     *postgres.ConnManager
	Fiber    *fiber.App
}
