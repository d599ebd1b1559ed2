package models

// BatchResult reports the outcome of a batched write. Both slices
// preserve the encounter order of the input.
type BatchResult struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// OrderInfo is the reduced latest-version projection used for
// existence and status checks.
type OrderInfo struct {
	OrderID string      `db:"order_id" json:"orderId"`
	UserID  string      `db:"user_id" json:"userId"`
	Symbol  string      `db:"symbol" json:"symbol"`
	Side    OrderSide   `db:"side" json:"side"`
	Status  OrderStatus `db:"status" json:"status"`
}

// OpenOrder is the projection returned for working orders.
type OpenOrder struct {
	OrderID string      `db:"order_id" json:"orderId"`
	Symbol  string      `db:"symbol" json:"symbol"`
	Status  OrderStatus `db:"status" json:"status"`
}

// DuplicateCheck is the replay response for a previously seen
// (user, request id) pair.
type DuplicateCheck struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}
