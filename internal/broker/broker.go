// Package broker reconciles pending orders against an execution backend:
// it owns the queue of order ids awaiting a fill, assembles realized
// Trades once a fill confirms, and persists them. Grounded on the
// teacher's pendingOrders/processPendingOrders pattern in
// internal/backtest/engine/engine_v1/backtest_trading.go, generalized
// from a single in-process backend to any execution.Backend.
package broker

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/execution"
	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/store"
	"github.com/kisquant/daytrader/internal/timeservice"
	"github.com/kisquant/daytrader/internal/types"
)

// Clock is the subset of TimeService the Broker needs to stamp trades.
type Clock interface {
	Now() time.Time
}

var _ Clock = (*timeservice.TimeService)(nil)

type pendingEntry struct {
	orderID        string
	order          types.Order
	avgPriceAtSell decimal.Decimal
	date           string
	time           string
}

// Broker owns the pending-order-id queue and reconciles it against the
// active execution backend.
type Broker struct {
	backend execution.Backend
	store   *store.Store
	clock   Clock
	logger  *logger.Logger

	mu      sync.Mutex
	pending []pendingEntry

	onFilled   func(types.Trade)
	onRejected func(types.Order, string)
}

// New constructs a Broker over the given backend and store.
func New(backend execution.Backend, st *store.Store, clock Clock, log *logger.Logger) *Broker {
	return &Broker{backend: backend, store: st, clock: clock, logger: log}
}

// OnFilled registers a callback invoked after each Trade is persisted, so
// Strategy/Runner can update in-memory day state.
func (b *Broker) OnFilled(fn func(types.Trade)) { b.onFilled = fn }

// OnRejected registers a callback invoked when a pending order is rejected.
func (b *Broker) OnRejected(fn func(types.Order, string)) { b.onRejected = fn }

// SubmitOrder enforces the pre-sell average-price contract (spec §4.4): for
// a Sell, the average cost basis is captured before execute_order runs, so
// a synchronously-filling backend like SimBroker can't empty the position
// out from under the read. The order is then enqueued for reconciliation.
func (b *Broker) SubmitOrder(order types.Order) (string, error) {
	var avgPriceAtSell decimal.Decimal

	if order.Side == types.SideSell {
		avg, err := b.backend.GetAveragePrice(order.Symbol)
		if err != nil {
			return "", err
		}

		avgPriceAtSell = avg
	}

	orderID, err := b.backend.ExecuteOrder(&order)
	if err != nil {
		return "", err
	}

	now := b.clock.Now()

	b.mu.Lock()
	b.pending = append(b.pending, pendingEntry{
		orderID:        orderID,
		order:          order,
		avgPriceAtSell: avgPriceAtSell,
		date:           timeservice.FormatDate(now),
		time:           now.Format("1504"),
	})
	b.mu.Unlock()

	return orderID, nil
}

// Reconcile drains the pending queue: for each id, it checks the fill
// status. A Filled order becomes a persisted Trade and is removed, a
// Rejected order is dropped with onRejected invoked, and a Pending order
// stays queued. Any fill-query error stops processing immediately and
// leaves the unprocessed remainder of the queue intact for the next tick.
func (b *Broker) Reconcile() error {
	b.mu.Lock()
	queue := b.pending
	b.mu.Unlock()

	if len(queue) == 0 {
		return nil
	}

	remaining := make([]pendingEntry, 0, len(queue))

	for i, entry := range queue {
		fill, err := b.backend.CheckFill(entry.orderID)
		if err != nil {
			remaining = append(remaining, queue[i:]...)
			b.setPending(remaining)

			return err
		}

		switch fill.Status {
		case types.FillPending:
			remaining = append(remaining, entry)
		case types.FillRejected:
			if b.onRejected != nil {
				b.onRejected(entry.order, fill.RejectedReason)
			}
		case types.FillFilled:
			trade := b.assembleTrade(entry, fill)

			if err := b.store.SaveTrade(trade, entry.avgPriceAtSell); err != nil {
				remaining = append(remaining, queue[i:]...)
				b.setPending(remaining)

				return err
			}

			if b.onFilled != nil {
				b.onFilled(trade)
			}
		}
	}

	b.setPending(remaining)

	return nil
}

func (b *Broker) setPending(entries []pendingEntry) {
	b.mu.Lock()
	b.pending = entries
	b.mu.Unlock()
}

// PendingCount reports how many orders are still awaiting reconciliation.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

// ResetForNewDay clears the pending-fill queue on an Overnight transition,
// per spec §9's fixed per-day reset order (Strategy, Broker queue, Store
// last). A non-empty queue at day boundary means a fill was never
// reconciled; it is dropped rather than carried into the next day's state.
func (b *Broker) ResetForNewDay() {
	b.setPending(nil)
}

func (b *Broker) assembleTrade(entry pendingEntry, fill types.Fill) types.Trade {
	trade := types.Trade{
		Date:      entry.date,
		Time:      entry.time,
		Symbol:    entry.order.Symbol,
		Side:      entry.order.Side,
		Quantity:  fill.Quantity,
		Price:     entry.order.Price,
		RealPrice: fill.RealPrice,
		Fee:       fill.Fee,
	}

	if entry.order.Side == types.SideSell {
		trade.AvgPriceAtSell = entry.avgPriceAtSell

		if !entry.avgPriceAtSell.IsZero() {
			trade.RoiPct = fill.RealPrice.Div(entry.avgPriceAtSell).Sub(decimal.NewFromInt(1))
		}
	}

	return trade
}
