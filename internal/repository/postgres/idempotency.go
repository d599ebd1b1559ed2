package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jayenashar/livrequant-toy/models"
)

const selectDuplicateQuery = `
SELECT order_id, status FROM trading.orders
WHERE request_id = $1 AND user_id = $2
ORDER BY created_at DESC, seq DESC
LIMIT 1`

const selectDuplicatesQuery = `
SELECT DISTINCT ON (request_id)
    request_id, order_id, status
FROM trading.orders
WHERE user_id = $1 AND request_id = ANY($2::text[]) AND request_id IS NOT NULL
ORDER BY request_id, created_at DESC, seq DESC`

// CheckDuplicateRequest looks up a previously recorded submission for
// the (user, request id) pair. Any failure collapses to "no
// duplicate": callers treat the check as safe-to-proceed.
func (r *OrderRepository) CheckDuplicateRequest(ctx context.Context, userID, requestID string) *models.DuplicateCheck {
	if requestID == "" {
		return nil
	}

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error checking duplicate request")
		return nil
	}

	var row struct {
		OrderID string             `db:"order_id"`
		Status  models.OrderStatus `db:"status"`
	}

	if err := db.GetContext(ctx, &row, selectDuplicateQuery, requestID, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.WithError(err).Error("error checking duplicate request")
		}
		return nil
	}

	r.logger.WithField("request_id", requestID).Info("found duplicate request")

	return &models.DuplicateCheck{
		Success: true,
		OrderID: row.OrderID,
		Message: fmt.Sprintf("Order previously submitted with status: %s", row.Status),
	}
}

// CheckDuplicateRequests is the batched lookup: one entry per request
// id that has ever been seen. Errors collapse to an empty map.
func (r *OrderRepository) CheckDuplicateRequests(ctx context.Context, userID string, requestIDs []string) map[string]models.DuplicateCheck {
	results := map[string]models.DuplicateCheck{}

	if len(requestIDs) == 0 {
		return results
	}

	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error checking duplicate requests")
		return results
	}

	var rows []struct {
		RequestID string             `db:"request_id"`
		OrderID   string             `db:"order_id"`
		Status    models.OrderStatus `db:"status"`
	}

	if err := db.SelectContext(ctx, &rows, selectDuplicatesQuery, userID, pq.Array(requestIDs)); err != nil {
		r.logger.WithError(err).Error("error checking duplicate requests")
		return results
	}

	for _, row := range rows {
		results[row.RequestID] = models.DuplicateCheck{
			Success: true,
			OrderID: row.OrderID,
			Message: fmt.Sprintf("Order previously submitted with status: %s", row.Status),
		}
	}

	return results
}
