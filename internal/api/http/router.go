package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
)

func RegisterHTTPEndpoints(f *fiber.App, orders postgres.OrderRepo, sessions postgres.SessionRepo, l *logrus.Logger) {
	h := NewHandler(f, orders, sessions, l)
	router := f.Group("api")
	router.Get("/healthcheck", h.HealthCheck)
	router.Get("/simulator", h.GetSimulator)
}
