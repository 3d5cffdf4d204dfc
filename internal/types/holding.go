package types

import "github.com/shopspring/decimal"

// Holding is a per-symbol position inside SimBroker. It is created on the
// first Buy, weighted-averaged on subsequent Buys, and reduced on Sell.
type Holding struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// AveragePrice is TotalCost / Quantity, or zero when Quantity is 0.
func (h Holding) AveragePrice() decimal.Decimal {
	if h.Quantity == 0 {
		return decimal.Zero
	}

	return h.TotalCost.Div(decimal.NewFromInt(h.Quantity))
}

// IsEmpty reports whether the holding should be removed from the ledger.
func (h Holding) IsEmpty() bool {
	return h.Quantity <= 0
}
