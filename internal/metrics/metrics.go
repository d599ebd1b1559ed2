package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jayenashar/livrequant-toy/models"
)

var (
	dbOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "db_operation_duration_seconds",
		Help: "Duration of ledger database operations.",
	}, []string{"operation", "success"})

	dbErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Database errors by operation.",
	}, []string{"operation"})

	poolResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "db_pool_resets_total",
		Help: "Connection pool discards triggered by fatal protocol errors.",
	})

	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders recorded, by symbol, side and type.",
	}, []string{"symbol", "side", "type"})
)

// TrackDBOperation records one data-access call that started at the
// given time.
func TrackDBOperation(operation string, success bool, started time.Time) {
	dbOperationDuration.
		WithLabelValues(operation, strconv.FormatBool(success)).
		Observe(time.Since(started).Seconds())
}

func TrackDBError(operation string) {
	dbErrors.WithLabelValues(operation).Inc()
}

func TrackPoolReset() {
	poolResets.Inc()
}

func TrackOrderCreated(o *models.Order) {
	ordersCreated.WithLabelValues(o.Symbol, string(o.Side), string(o.OrderType)).Inc()
}
