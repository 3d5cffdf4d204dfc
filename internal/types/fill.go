package types

import "github.com/shopspring/decimal"

// FillStatus is the state of an order's check_fill query.
type FillStatus string

const (
	FillPending  FillStatus = "pending"
	FillFilled   FillStatus = "filled"
	FillRejected FillStatus = "rejected"
)

// Fill is the result of an ExecutionBackend.CheckFill call.
type Fill struct {
	Status         FillStatus
	RealPrice      decimal.Decimal
	Quantity       int64
	Fee            decimal.Decimal
	RejectedReason string
}
