package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further status transitions are expected.
// Terminal statuses stop writes by convention, not by schema enforcement.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Order is one immutable version row in the append-only ledger. Rows
// sharing an OrderID form a version chain; the row with the highest
// (CreatedAt, Seq) is the current state. Timestamps are epoch seconds.
type Order struct {
	Seq            int64           `db:"seq"`
	OrderID        string          `db:"order_id"`
	UserID         string          `db:"user_id"`
	Symbol         string          `db:"symbol"`
	Side           OrderSide       `db:"side"`
	Quantity       decimal.Decimal `db:"quantity"`
	Price          decimal.Decimal `db:"price"`
	OrderType      OrderType       `db:"order_type"`
	Status         OrderStatus     `db:"status"`
	FilledQuantity decimal.Decimal `db:"filled_quantity"`
	AvgPrice       decimal.Decimal `db:"avg_price"`
	CreatedAt      float64         `db:"created_at"`
	UpdatedAt      float64         `db:"updated_at"`
	RequestID      sql.NullString  `db:"request_id"`
	ErrorMessage   sql.NullString  `db:"error_message"`
}
