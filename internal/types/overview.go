package types

import "github.com/shopspring/decimal"

// Overview is the per-day aggregate row summarizing starting assets,
// intraday extremes, end-of-day assets, traded value, and fees.
type Overview struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Fees   decimal.Decimal `json:"fees"`
	Roi    decimal.Decimal `json:"roi"`
}
