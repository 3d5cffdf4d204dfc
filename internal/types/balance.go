package types

import "github.com/shopspring/decimal"

// Balance is an account snapshot. In backtest it reflects SimBroker's
// internal ledger; in paper/live it is queried from the brokerage.
type Balance struct {
	Cash        decimal.Decimal `json:"cash"`
	TotalAssets decimal.Decimal `json:"total_assets"`
}
