package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/jayenashar/livrequant-toy/internal/metrics"
	"github.com/jayenashar/livrequant-toy/models"
)

// ErrOrderNotFound is returned when no version chain exists for an id.
var ErrOrderNotFound = errors.New("order not found")

const selectLatestRawQuery = `
SELECT * FROM trading.orders
WHERE order_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT 1`

const selectOrdersInfoQuery = `
WITH latest_orders AS (
    SELECT DISTINCT ON (order_id) *
    FROM trading.orders
    WHERE order_id = ANY($1::text[])
    ORDER BY order_id, created_at DESC, seq DESC
)
SELECT order_id, user_id, symbol, side, status
FROM latest_orders`

const selectOpenOrdersQuery = `
WITH latest_orders AS (
    SELECT DISTINCT ON (order_id) *
    FROM trading.orders
    WHERE user_id = $1 AND symbol = ANY($2::text[])
    ORDER BY order_id, created_at DESC, seq DESC
)
SELECT order_id, symbol, status
FROM latest_orders
WHERE status IN ('NEW', 'PARTIALLY_FILLED')`

// GetOrder reconstructs the current state of one order: the row with
// the highest (created_at, seq) in its version chain.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Error("error getting order")
		return nil, err
	}

	raw := map[string]interface{}{}
	if err := db.QueryRowxContext(ctx, selectLatestRawQuery, orderID).MapScan(raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		r.logger.WithError(err).WithField("order_id", orderID).Error("error getting order")
		return nil, err
	}

	order, ok := r.mapper.FromRow(raw)
	if !ok {
		return nil, ErrOrderNotFound
	}

	return &order, nil
}

// GetOrdersInfo returns the reduced latest-version projection for a
// set of ids. Errors collapse to an empty result.
func (r *OrderRepository) GetOrdersInfo(ctx context.Context, orderIDs []string) []models.OrderInfo {
	if len(orderIDs) == 0 {
		return []models.OrderInfo{}
	}

	started := time.Now()

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error getting order information")
		return []models.OrderInfo{}
	}

	out := []models.OrderInfo{}
	if err := db.SelectContext(ctx, &out, selectOrdersInfoQuery, pq.Array(orderIDs)); err != nil {
		r.logger.WithError(err).Error("error getting order information")
		metrics.TrackDBOperation("get_orders_info", false, started)
		return []models.OrderInfo{}
	}

	metrics.TrackDBOperation("get_orders_info", true, started)

	return out
}

// GetOpenOrdersBySymbol returns orders whose latest status is still
// working (NEW or PARTIALLY_FILLED) for the given user and symbols.
// An empty symbol list short-circuits without a query.
func (r *OrderRepository) GetOpenOrdersBySymbol(ctx context.Context, userID string, symbols []string) []models.OpenOrder {
	if len(symbols) == 0 {
		return []models.OpenOrder{}
	}

	started := time.Now()

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error getting open orders")
		return []models.OpenOrder{}
	}

	out := []models.OpenOrder{}
	if err := db.SelectContext(ctx, &out, selectOpenOrdersQuery, userID, pq.Array(symbols)); err != nil {
		r.logger.WithError(err).Error("error getting open orders")
		metrics.TrackDBOperation("get_open_orders", false, started)
		return []models.OpenOrder{}
	}

	metrics.TrackDBOperation("get_open_orders", true, started)

	return out
}

// CheckConnection delegates to the manager's probe so there is exactly
// one authoritative liveness check.
func (r *OrderRepository) CheckConnection(ctx context.Context) bool {
	return r.pool.CheckConnection(ctx)
}
