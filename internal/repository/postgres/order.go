package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/metrics"
	"github.com/jayenashar/livrequant-toy/models"
)

const insertOrderQuery = `
INSERT INTO trading.orders (
    order_id, user_id, symbol, side, quantity, price,
    order_type, status, filled_quantity, avg_price,
    created_at, updated_at, request_id, error_message
) VALUES (
    :order_id, :user_id, :symbol, :side, :quantity, :price,
    :order_type, :status, :filled_quantity, :avg_price,
    to_timestamp(:created_at), to_timestamp(:updated_at), :request_id, :error_message
)`

const selectLatestOrderQuery = `
SELECT order_id, user_id, symbol, side, quantity, price,
       order_type, status, filled_quantity, avg_price,
       EXTRACT(EPOCH FROM created_at) AS created_at,
       EXTRACT(EPOCH FROM updated_at) AS updated_at,
       request_id, error_message
FROM trading.orders
WHERE order_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT 1`

type OrderRepository struct {
	pool   *ConnManager
	mapper *Mapper[models.Order]
	logger *logrus.Logger
}

func NewOrderRepository(pool *ConnManager, logger *logrus.Logger) *OrderRepository {
	mapper := NewMapper[models.Order]("trading", "orders", logger).
		WithConverter("created_at", EpochSeconds()).
		WithConverter("updated_at", EpochSeconds())

	return &OrderRepository{
		pool:   pool,
		mapper: mapper,
		logger: logger,
	}
}

func epochNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// SaveOrder appends a single order row. Failures are logged and
// reported as false, never raised past this boundary.
func (r *OrderRepository) SaveOrder(ctx context.Context, order *models.Order) bool {
	started := time.Now()

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error saving order")
		metrics.TrackDBOperation("save_order", false, started)
		return false
	}

	args := r.mapper.ToRow(*order)
	if _, err := db.NamedExecContext(ctx, insertOrderQuery, map[string]interface{}(args)); err != nil {
		r.logger.
			WithError(err).
			WithField("order_id", order.OrderID).
			Error("error saving order")
		metrics.TrackDBOperation("save_order", false, started)
		return false
	}

	metrics.TrackDBOperation("save_order", true, started)
	metrics.TrackOrderCreated(order)

	return true
}

// SaveOrders appends a batch of order rows inside one transaction.
// Each insert runs in its own savepoint so one bad row rolls back only
// itself; the outer transaction commits the rest.
func (r *OrderRepository) SaveOrders(ctx context.Context, orders []*models.Order) models.BatchResult {
	started := time.Now()
	result := models.BatchResult{Successful: []string{}, Failed: []string{}}

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error batch saving orders")
		metrics.TrackDBOperation("save_orders_batch", false, started)
		return failAll(orders)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.WithError(err).Error("error batch saving orders")
		metrics.TrackDBOperation("save_orders_batch", false, started)
		return failAll(orders)
	}

	for i, order := range orders {
		sp := fmt.Sprintf("order_%d", i)

		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			r.logger.WithError(err).Error("error batch saving orders")
			_ = tx.Rollback()
			metrics.TrackDBOperation("save_orders_batch", false, started)
			return failAll(orders)
		}

		args := r.mapper.ToRow(*order)
		if _, err := tx.NamedExecContext(ctx, insertOrderQuery, map[string]interface{}(args)); err != nil {
			r.logger.
				WithError(err).
				WithField("order_id", order.OrderID).
				Error("error saving order")

			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				r.logger.WithError(rbErr).Error("error batch saving orders")
				_ = tx.Rollback()
				metrics.TrackDBOperation("save_orders_batch", false, started)
				return failAll(orders)
			}

			result.Failed = append(result.Failed, order.OrderID)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			r.logger.WithError(err).Error("error batch saving orders")
			_ = tx.Rollback()
			metrics.TrackDBOperation("save_orders_batch", false, started)
			return failAll(orders)
		}

		result.Successful = append(result.Successful, order.OrderID)
	}

	if err := tx.Commit(); err != nil {
		r.logger.WithError(err).Error("error batch saving orders")
		metrics.TrackDBOperation("save_orders_batch", false, started)
		return failAll(orders)
	}

	metrics.TrackDBOperation("save_orders_batch", true, started)

	return result
}

// SaveOrderStatus appends a new version for an order: the latest row
// is read back and carried forward unchanged except for status, both
// timestamps and, when given, the error message.
func (r *OrderRepository) SaveOrderStatus(ctx context.Context, orderID, userID string, status models.OrderStatus, errorMessage string) bool {
	started := time.Now()

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error saving order status")
		metrics.TrackDBOperation("save_order_status", false, started)
		return false
	}

	var prev models.Order
	if err := db.GetContext(ctx, &prev, selectLatestOrderQuery, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.
				WithField("order_id", orderID).
				WithField("user_id", userID).
				Error("order not found")
		} else {
			r.logger.WithError(err).Error("error saving order status")
		}
		metrics.TrackDBOperation("save_order_status", false, started)
		return false
	}

	next := nextVersion(prev, status, errorMessage)

	args := r.mapper.ToRow(next)
	if _, err := db.NamedExecContext(ctx, insertOrderQuery, map[string]interface{}(args)); err != nil {
		r.logger.
			WithError(err).
			WithField("order_id", orderID).
			Error("error saving order status")
		metrics.TrackDBOperation("save_order_status", false, started)
		return false
	}

	metrics.TrackDBOperation("save_order_status", true, started)

	return true
}

// BatchSaveOrderStatus runs the read-then-append transition for each
// id inside one transaction, with the same savepoint isolation as
// SaveOrders.
func (r *OrderRepository) BatchSaveOrderStatus(ctx context.Context, orderIDs []string, status models.OrderStatus, errorMessage string) models.BatchResult {
	started := time.Now()
	result := models.BatchResult{Successful: []string{}, Failed: []string{}}

	if len(orderIDs) == 0 {
		return result
	}

	failAllIDs := func() models.BatchResult {
		out := models.BatchResult{Successful: []string{}, Failed: []string{}}
		out.Failed = append(out.Failed, orderIDs...)
		return out
	}

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error in batch status update")
		metrics.TrackDBOperation("batch_save_order_status", false, started)
		return failAllIDs()
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.WithError(err).Error("error in batch status update")
		metrics.TrackDBOperation("batch_save_order_status", false, started)
		return failAllIDs()
	}

	for i, orderID := range orderIDs {
		sp := fmt.Sprintf("status_%d", i)

		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			r.logger.WithError(err).Error("error in batch status update")
			_ = tx.Rollback()
			metrics.TrackDBOperation("batch_save_order_status", false, started)
			return failAllIDs()
		}

		var prev models.Order
		if err := tx.GetContext(ctx, &prev, selectLatestOrderQuery, orderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				r.logger.WithField("order_id", orderID).Error("order not found")
			} else {
				r.logger.
					WithError(err).
					WithField("order_id", orderID).
					Error("error updating order")
			}

			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				r.logger.WithError(rbErr).Error("error in batch status update")
				_ = tx.Rollback()
				metrics.TrackDBOperation("batch_save_order_status", false, started)
				return failAllIDs()
			}

			result.Failed = append(result.Failed, orderID)
			continue
		}

		next := nextVersion(prev, status, errorMessage)

		args := r.mapper.ToRow(next)
		if _, err := tx.NamedExecContext(ctx, insertOrderQuery, map[string]interface{}(args)); err != nil {
			r.logger.
				WithError(err).
				WithField("order_id", orderID).
				Error("error updating order")

			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				r.logger.WithError(rbErr).Error("error in batch status update")
				_ = tx.Rollback()
				metrics.TrackDBOperation("batch_save_order_status", false, started)
				return failAllIDs()
			}

			result.Failed = append(result.Failed, orderID)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			r.logger.WithError(err).Error("error in batch status update")
			_ = tx.Rollback()
			metrics.TrackDBOperation("batch_save_order_status", false, started)
			return failAllIDs()
		}

		result.Successful = append(result.Successful, orderID)
	}

	if err := tx.Commit(); err != nil {
		r.logger.WithError(err).Error("error in batch status update")
		metrics.TrackDBOperation("batch_save_order_status", false, started)
		return failAllIDs()
	}

	metrics.TrackDBOperation("batch_save_order_status", true, started)

	return result
}

// nextVersion copies prev, overriding status, both timestamps and,
// when non-empty, the error message.
func nextVersion(prev models.Order, status models.OrderStatus, errorMessage string) models.Order {
	next := prev
	next.Seq = 0
	next.Status = status

	now := epochNow()
	next.CreatedAt = now
	next.UpdatedAt = now

	if errorMessage != "" {
		next.ErrorMessage = sql.NullString{String: errorMessage, Valid: true}
	}

	return next
}

func failAll(orders []*models.Order) models.BatchResult {
	out := models.BatchResult{Successful: []string{}, Failed: []string{}}
	for _, order := range orders {
		out.Failed = append(out.Failed, order.OrderID)
	}

	return out
}
