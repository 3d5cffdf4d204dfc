package types

import "github.com/shopspring/decimal"

// Trade is a realized execution record, written to the store once a fill
// has been confirmed. RealPrice and Fee must be populated before
// insertion. RoiPct is only meaningful for a Sell.
type Trade struct {
	Date           string          `json:"date"` // YYYYMMDD
	Time           string          `json:"time"` // HHMM
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`      // intended price on the order
	RealPrice      decimal.Decimal `json:"real_price"` // actual fill price including slippage
	Fee            decimal.Decimal `json:"fee"`
	AvgPriceAtSell decimal.Decimal `json:"avg_price_at_sell"` // only set for Sell
	RoiPct         decimal.Decimal `json:"roi_pct"`           // only set for Sell
	Note           string          `json:"note"`
}

// Notional returns RealPrice * Quantity, the value used for overview volume.
func (t Trade) Notional() decimal.Decimal {
	return t.RealPrice.Mul(decimal.NewFromInt(t.Quantity))
}
