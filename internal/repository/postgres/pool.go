package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jayenashar/livrequant-toy/internal/metrics"
)

var (
	// ErrConnectionFailed is returned once the retry budget is spent.
	// It is the one fatal condition here and must reach startup logic.
	ErrConnectionFailed = errors.New("failed to connect to postgres")

	ErrManagerClosed = errors.New("connection manager is closed")
)

const healthCheckTimeout = 5 * time.Second

type PoolConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MinConns   int
	MaxConns   int
	MaxRetries int
	RetryDelay time.Duration
}

func (c *PoolConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode)
}

// ConnManager owns the single shared pool. Pool creation is serialized
// so concurrent first-time callers cannot race to build two pools, and
// a pool found broken by the health probe is discarded so the next
// operation reconnects.
type ConnManager struct {
	cfg    PoolConfig
	logger *logrus.Logger

	mu     sync.Mutex
	db     *sqlx.DB
	closed bool

	open  func() (*sqlx.DB, error)
	sleep func(time.Duration)
}

func NewConnManager(cfg PoolConfig, logger *logrus.Logger) *ConnManager {
	m := &ConnManager{
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
	m.open = m.openPool

	return m
}

// NewConnManagerWithDB wraps an already established pool. Used by tests
// and by callers that manage the connection themselves.
func NewConnManagerWithDB(db *sqlx.DB, logger *logrus.Logger) *ConnManager {
	m := &ConnManager{
		logger: logger,
		db:     db,
		sleep:  time.Sleep,
	}
	m.open = func() (*sqlx.DB, error) {
		return nil, ErrConnectionFailed
	}

	return m
}

func (m *ConnManager) openPool() (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", m.cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(m.cfg.MaxConns)
	db.SetMaxIdleConns(m.cfg.MinConns)

	return db, nil
}

// Connect establishes the pool exactly once, retrying up to MaxRetries
// with a delay that doubles per attempt.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connectLocked(ctx)
}

// connectLocked assumes m.mu is held.
func (m *ConnManager) connectLocked(ctx context.Context) error {
	if m.closed {
		return ErrManagerClosed
	}
	if m.db != nil {
		return nil
	}

	delay := m.cfg.RetryDelay

	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		db, err := m.open()
		if err == nil {
			m.db = db
			m.logger.Info("connected to postgres")
			return nil
		}

		m.logger.
			WithError(err).
			WithField("attempt", fmt.Sprintf("%d/%d", attempt, m.cfg.MaxRetries)).
			Error("postgres connection error")

		if attempt < m.cfg.MaxRetries {
			m.sleep(delay)
			delay *= 2
		}
	}

	metrics.TrackDBError("pg_connect")

	return fmt.Errorf("%w after %d attempts", ErrConnectionFailed, m.cfg.MaxRetries)
}

// DB returns the shared pool, connecting lazily if it was never built
// or was discarded by the health probe. The pool is read under the same
// critical section that built it, so a concurrent discard cannot leave
// the caller with a nil handle and no error.
func (m *ConnManager) DB(ctx context.Context) (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}

	return m.db, nil
}

// CheckConnection probes the pool with a short timeout. A fatal
// protocol or connection-class failure (e.g. a stale pgbouncer session)
// discards the pool so the next operation reconnects; that transition
// is self-healing and is not surfaced to the caller.
func (m *ConnManager) CheckConnection(ctx context.Context) bool {
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()

	if db == nil {
		m.logger.Warn("connection check: pool does not exist")
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var one int
	err := db.GetContext(probeCtx, &one, "SELECT 1")
	if err == nil {
		return one == 1
	}

	if isFatalConnErr(err) {
		m.logger.WithError(err).Error("postgres pool broken, discarding")
		metrics.TrackPoolReset()

		if closeErr := db.Close(); closeErr != nil {
			m.logger.WithError(closeErr).Error("error closing broken pool")
		}

		m.mu.Lock()
		if m.db == db {
			m.db = nil
		}
		m.mu.Unlock()

		return false
	}

	m.logger.WithError(err).Error("postgres connection check failed")

	return false
}

// Close is idempotent and terminal.
func (m *ConnManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Close(); err != nil {
			m.logger.WithError(err).Error("error closing postgres pool")
		}
		m.db = nil
		m.logger.Info("closed postgres pool")
	}

	m.closed = true
}

// isFatalConnErr reports errors that invalidate the whole pool rather
// than a single statement. Class 08 covers connection exceptions,
// including the 08P01 protocol violations a connection proxy raises on
// stale sessions.
func isFatalConnErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}

	return false
}
