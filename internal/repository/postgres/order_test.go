package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
	"github.com/jayenashar/livrequant-toy/models"
)

var orderColumns = []string{
	"order_id", "user_id", "symbol", "side", "quantity", "price",
	"order_type", "status", "filled_quantity", "avg_price",
	"created_at", "updated_at", "request_id", "error_message",
}

func newMockRepo(t *testing.T) (*postgres.OrderRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool := postgres.NewConnManagerWithDB(sqlx.NewDb(db, "sqlmock"), testLogger())

	return postgres.NewOrderRepository(pool, testLogger()), mock
}

func testOrder(id string) *models.Order {
	return &models.Order{
		OrderID:        id,
		UserID:         "user-1",
		Symbol:         "AAPL",
		Side:           models.SideBuy,
		Quantity:       decimal.RequireFromString("10.5"),
		Price:          decimal.RequireFromString("187.20"),
		OrderType:      models.TypeLimit,
		Status:         models.StatusNew,
		FilledQuantity: decimal.Zero,
		AvgPrice:       decimal.Zero,
		CreatedAt:      1714564800,
		UpdatedAt:      1714564800,
	}
}

func latestOrderRow() *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns).
		AddRow("ord-1", "user-1", "AAPL", "BUY", "10.5", "187.20",
			"LIMIT", "NEW", "0", "0",
			1714564800.0, 1714564800.0, "req-1", nil)
}

func Test_SaveOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO trading.orders").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.True(t, repo.SaveOrder(context.Background(), testOrder(uuid.NewString())))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure returns false, never an error", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO trading.orders").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

		assert.False(t, repo.SaveOrder(context.Background(), testOrder(uuid.NewString())))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func Test_SaveOrdersBatchIsolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	a, b, c := testOrder("ord-a"), testOrder("ord-b"), testOrder("ord-c")

	mock.ExpectBegin()

	mock.ExpectExec("SAVEPOINT order_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO trading.orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT order_0").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("SAVEPOINT order_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO trading.orders").
		WillReturnError(&pq.Error{Code: "23502", Message: "null value in column"})
	mock.ExpectExec("ROLLBACK TO SAVEPOINT order_1").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec("SAVEPOINT order_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO trading.orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT order_2").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectCommit()

	result := repo.SaveOrders(context.Background(), []*models.Order{a, b, c})

	assert.Equal(t, []string{"ord-a", "ord-c"}, result.Successful)
	assert.Equal(t, []string{"ord-b"}, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SaveOrdersTransactionDeath(t *testing.T) {
	t.Run("begin failure fails every order", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

		result := repo.SaveOrders(context.Background(), []*models.Order{
			testOrder("ord-a"), testOrder("ord-b"),
		})

		assert.Empty(t, result.Successful)
		assert.Equal(t, []string{"ord-a", "ord-b"}, result.Failed)
	})

	t.Run("poisoned transaction fails every order", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("SAVEPOINT order_0").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO trading.orders").
			WillReturnError(errors.New("insert failed"))
		mock.ExpectExec("ROLLBACK TO SAVEPOINT order_0").
			WillReturnError(errors.New("connection lost"))
		mock.ExpectRollback()

		result := repo.SaveOrders(context.Background(), []*models.Order{
			testOrder("ord-a"), testOrder("ord-b"),
		})

		// The rollback discards everything, so nothing may be
		// reported durable.
		assert.Empty(t, result.Successful)
		assert.Equal(t, []string{"ord-a", "ord-b"}, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure fails every order", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("SAVEPOINT order_0").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO trading.orders").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("RELEASE SAVEPOINT order_0").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

		result := repo.SaveOrders(context.Background(), []*models.Order{testOrder("ord-a")})

		assert.Empty(t, result.Successful)
		assert.Equal(t, []string{"ord-a"}, result.Failed)
	})
}

func Test_SaveOrderStatus(t *testing.T) {
	t.Run("appends a new version carrying fields forward", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`(?s)FROM trading.orders.*ORDER BY created_at DESC, seq DESC`).
			WithArgs("ord-1").
			WillReturnRows(latestOrderRow())

		mock.ExpectExec("INSERT INTO trading.orders").
			WithArgs("ord-1", "user-1", "AAPL", "BUY",
				sqlmock.AnyArg(), sqlmock.AnyArg(), "LIMIT", "FILLED",
				sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok := repo.SaveOrderStatus(context.Background(), "ord-1", "user-1", models.StatusFilled, "")

		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("new error message overrides the carried one", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`(?s)FROM trading.orders.*ORDER BY created_at DESC, seq DESC`).
			WithArgs("ord-1").
			WillReturnRows(latestOrderRow())

		mock.ExpectExec("INSERT INTO trading.orders").
			WithArgs("ord-1", "user-1", "AAPL", "BUY",
				sqlmock.AnyArg(), sqlmock.AnyArg(), "LIMIT", "REJECTED",
				sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", "insufficient funds").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok := repo.SaveOrderStatus(context.Background(), "ord-1", "user-1", models.StatusRejected, "insufficient funds")

		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order fails", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`(?s)FROM trading.orders.*ORDER BY created_at DESC, seq DESC`).
			WithArgs("ord-gone").
			WillReturnRows(sqlmock.NewRows(orderColumns))

		ok := repo.SaveOrderStatus(context.Background(), "ord-gone", "user-1", models.StatusCancelled, "")

		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func Test_BatchSaveOrderStatus(t *testing.T) {
	t.Run("empty input short-circuits", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		result := repo.BatchSaveOrderStatus(context.Background(), nil, models.StatusCancelled, "")

		assert.Empty(t, result.Successful)
		assert.Empty(t, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order fails only its own id", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()

		mock.ExpectExec("SAVEPOINT status_0").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`(?s)FROM trading.orders.*ORDER BY created_at DESC, seq DESC`).
			WithArgs("ord-1").
			WillReturnRows(latestOrderRow())
		mock.ExpectExec("INSERT INTO trading.orders").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("RELEASE SAVEPOINT status_0").WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectExec("SAVEPOINT status_1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`(?s)FROM trading.orders.*ORDER BY created_at DESC, seq DESC`).
			WithArgs("ord-gone").
			WillReturnRows(sqlmock.NewRows(orderColumns))
		mock.ExpectExec("ROLLBACK TO SAVEPOINT status_1").WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectCommit()

		result := repo.BatchSaveOrderStatus(context.Background(),
			[]string{"ord-1", "ord-gone"}, models.StatusCancelled, "")

		assert.Equal(t, []string{"ord-1"}, result.Successful)
		assert.Equal(t, []string{"ord-gone"}, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
