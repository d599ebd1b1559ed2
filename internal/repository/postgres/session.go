package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/metrics"
	"github.com/jayenashar/livrequant-toy/models"
)

const selectDeviceQuery = `
SELECT 1 FROM session.session_details
WHERE device_id = $1`

const selectSimulatorQuery = `
SELECT * FROM simulator.instances
WHERE user_id = $1
AND status IN ('RUNNING')
ORDER BY created_at DESC, simulator_id
LIMIT 1`

type SessionRepository struct {
	pool   *ConnManager
	mapper *Mapper[models.SimulatorInstance]
	logger *logrus.Logger

	// failOpen bypasses device validation on data-access errors.
	// A deliberate availability-over-strictness policy; keep it
	// toggleable per deployment, never hard-coded.
	failOpen bool
}

func NewSessionRepository(pool *ConnManager, failOpen bool, logger *logrus.Logger) *SessionRepository {
	mapper := NewMapper[models.SimulatorInstance]("simulator", "instances", logger).
		WithIDField("simulator_id").
		WithConverter("created_at", EpochSeconds()).
		WithConverter("exchange_type", EnumOrDefault(models.ParseExchangeType, models.DefaultExchangeType))

	return &SessionRepository{
		pool:     pool,
		mapper:   mapper,
		logger:   logger,
		failOpen: failOpen,
	}
}

// ValidateDeviceID checks that the device id is known to the session
// table. On a data-access error the fail-open policy decides: bypass
// with a warning, or fail closed.
func (r *SessionRepository) ValidateDeviceID(ctx context.Context, deviceID string) bool {
	if deviceID == "" {
		return false
	}

	started := time.Now()

	db, err := r.pool.DB(ctx)
	if err != nil {
		return r.deviceValidationError(err, started)
	}

	var one int
	if err := db.GetContext(ctx, &one, selectDeviceQuery, deviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.TrackDBOperation("validate_device_id", false, started)
			return false
		}
		return r.deviceValidationError(err, started)
	}

	metrics.TrackDBOperation("validate_device_id", true, started)

	return true
}

func (r *SessionRepository) deviceValidationError(err error, started time.Time) bool {
	metrics.TrackDBOperation("validate_device_id", false, started)
	r.logger.WithError(err).Error("error validating device ID")

	if r.failOpen {
		r.logger.Warn("skipping device ID validation due to database error")
		return true
	}

	return false
}

// GetSessionSimulator returns the most recently created RUNNING
// simulator instance for the user, or nil on miss or error.
func (r *SessionRepository) GetSessionSimulator(ctx context.Context, userID string) *models.SimulatorInstance {
	db, err := r.pool.DB(ctx)
	if err != nil {
		r.logger.WithError(err).Error("error getting user simulator")
		return nil
	}

	raw := map[string]interface{}{}
	if err := db.QueryRowxContext(ctx, selectSimulatorQuery, userID).MapScan(raw); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.WithError(err).Error("error getting user simulator")
		}
		return nil
	}

	instance, ok := r.mapper.FromRow(raw)
	if !ok {
		return nil
	}

	return &instance
}
