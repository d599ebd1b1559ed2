package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
)

type Handler struct {
	fiber    *fiber.App
	orders   postgres.OrderRepo
	sessions postgres.SessionRepo
	logger   *logrus.Logger
}

func NewHandler(f *fiber.App, orders postgres.OrderRepo, sessions postgres.SessionRepo, l *logrus.Logger) *Handler {
	return &Handler{
		fiber:    f,
		orders:   orders,
		sessions: sessions,
		logger:   l,
	}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status := h.orders.CheckConnection(c.Context())

	body := struct {
		Status bool `json:"status"`
	}{
		Status: status,
	}

	if !status {
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}

	if err := c.JSON(body); err != nil {
		return err
	}

	return nil
}

func (h *Handler) GetSimulator(c *fiber.Ctx) error {
	deviceID := c.Get("X-Device-Id")
	if !h.sessions.ValidateDeviceID(c.Context(), deviceID) {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	userID := c.Query("user_id")
	if userID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	instance := h.sessions.GetSessionSimulator(c.Context(), userID)
	if instance == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	body := struct {
		SimulatorID  string `json:"simulatorId"`
		Endpoint     string `json:"endpoint"`
		Status       string `json:"status"`
		ExchangeType string `json:"exchangeType"`
	}{
		SimulatorID:  instance.SimulatorID,
		Endpoint:     instance.Endpoint,
		Status:       instance.Status,
		ExchangeType: string(instance.ExchangeType),
	}

	if err := c.JSON(body); err != nil {
		return err
	}

	return nil
}
