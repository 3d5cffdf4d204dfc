// Package execution defines the capability set shared by the three
// execution backends (spec §4.3) and assembles them into an ApiBundle.
package execution

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/types"
)

// Backend is the polymorphic capability set SimBroker and LiveClient both
// implement. Strategy and Broker depend only on this interface.
type Backend interface {
	// ExecuteOrder submits order, mutating order.Fee, and returns an order id.
	ExecuteOrder(order *types.Order) (orderID string, err error)
	// CheckFill reports the current fill state of a previously submitted order.
	CheckFill(orderID string) (types.Fill, error)
	// CancelOrder cancels a pending order. A no-op for already-filled orders.
	CancelOrder(orderID string) error
	GetBalance() (types.Balance, error)
	// GetAveragePrice is meaningful only when a position exists for symbol.
	GetAveragePrice(symbol string) (decimal.Decimal, error)
	// GetCurrentPrice returns symbol's current price. at is nil for "now".
	GetCurrentPrice(symbol string, at *time.Time) (decimal.Decimal, error)
}

// ApiBundle selects the active Backend for the configured Mode and gives
// Strategy/Features read access to it, per spec §3's shared-ownership note.
type ApiBundle struct {
	active Backend
	mode   types.Mode
}

// NewApiBundle wires an ApiBundle around the backend appropriate for mode.
func NewApiBundle(mode types.Mode, backend Backend) *ApiBundle {
	return &ApiBundle{active: backend, mode: mode}
}

// Backend returns the active execution backend.
func (a *ApiBundle) Backend() Backend { return a.active }

// Mode returns the configured mode.
func (a *ApiBundle) Mode() types.Mode { return a.mode }
