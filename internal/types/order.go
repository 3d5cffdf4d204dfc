package types

import "github.com/shopspring/decimal"

// Side identifies which direction an Order or Trade moves a position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is a proposed or in-flight instruction submitted to an
// ExecutionBackend. Quantity and Price are set by Strategy at creation
// time; Fee is populated by the backend once the order has executed.
type Order struct {
	ID       string          `json:"id" validate:"-"`
	Symbol   string          `json:"symbol" validate:"required"`
	Side     Side            `json:"side" validate:"required,oneof=buy sell"`
	Quantity int64           `json:"quantity" validate:"required,gt=0"`
	Price    decimal.Decimal `json:"price" validate:"-"`
	Fee      decimal.Decimal `json:"fee"`
}
