package postgres

import (
	"context"

	"github.com/jayenashar/livrequant-toy/models"
)

//go:generate mockery --case=snake --name=OrderRepo
//go:generate mockery --case=snake --name=SessionRepo

type OrderRepo interface {
	SaveOrder(ctx context.Context, order *models.Order) bool
	SaveOrders(ctx context.Context, orders []*models.Order) models.BatchResult
	SaveOrderStatus(ctx context.Context, orderID, userID string, status models.OrderStatus, errorMessage string) bool
	BatchSaveOrderStatus(ctx context.Context, orderIDs []string, status models.OrderStatus, errorMessage string) models.BatchResult
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrdersInfo(ctx context.Context, orderIDs []string) []models.OrderInfo
	GetOpenOrdersBySymbol(ctx context.Context, userID string, symbols []string) []models.OpenOrder
	CheckDuplicateRequest(ctx context.Context, userID, requestID string) *models.DuplicateCheck
	CheckDuplicateRequests(ctx context.Context, userID string, requestIDs []string) map[string]models.DuplicateCheck
	CheckConnection(ctx context.Context) bool
}

type SessionRepo interface {
	ValidateDeviceID(ctx context.Context, deviceID string) bool
	GetSessionSimulator(ctx context.Context, userID string) *models.SimulatorInstance
}
