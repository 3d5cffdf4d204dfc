// Package simbroker implements the backtest ExecutionBackend variant:
// deterministic fills against the 1-minute bar store, fee/slippage
// accounting, and an in-memory holdings ledger. Grounded on
// internal/backtest/engine/engine_v1/backtest_trading.go's order
// validation and buying/selling-power checks, generalized from that
// teacher's percentage-of-notional commission to the spec's
// fee_rate/slippage_rate model (spec §4.3).
package simbroker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/marketdata"
	"github.com/kisquant/daytrader/internal/timeservice"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Config holds the fee and slippage rates from the backtest config section.
type Config struct {
	BuyFeeRate       decimal.Decimal
	SellFeeRate      decimal.Decimal
	BuySlippageRate  decimal.Decimal
	SellSlippageRate decimal.Decimal
}

// Clock is the subset of TimeService SimBroker needs: the current instant.
type Clock interface {
	Now() time.Time
}

var _ Clock = (*timeservice.TimeService)(nil)

// SimBroker is the deterministic backtest execution backend.
type SimBroker struct {
	md    *marketdata.Store
	clock Clock
	cfg   Config
	mu    sync.Mutex
	cash  decimal.Decimal
	holds map[string]types.Holding
	fills map[string]types.Fill
}

// New constructs a SimBroker with the given starting cash.
func New(md *marketdata.Store, clock Clock, cfg Config, initialCapital decimal.Decimal) *SimBroker {
	return &SimBroker{
		md:    md,
		clock: clock,
		cfg:   cfg,
		cash:  initialCapital,
		holds: make(map[string]types.Holding),
		fills: make(map[string]types.Fill),
	}
}

// ExecuteOrder fills order immediately at order.Price adjusted by the
// configured slippage rate, updates the holdings ledger transactionally,
// and mutates order.Fee.
func (b *SimBroker) ExecuteOrder(order *types.Order) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	qty := decimal.NewFromInt(order.Quantity)

	var (
		fillPrice decimal.Decimal
		feeRate   decimal.Decimal
	)

	switch order.Side {
	case types.SideBuy:
		fillPrice = order.Price.Mul(decimal.NewFromInt(1).Add(b.cfg.BuySlippageRate))
		feeRate = b.cfg.BuyFeeRate
	case types.SideSell:
		fillPrice = order.Price.Mul(decimal.NewFromInt(1).Sub(b.cfg.SellSlippageRate))
		feeRate = b.cfg.SellFeeRate
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unknown order side %q", order.Side)
	}

	fee := fillPrice.Mul(qty).Mul(feeRate)

	if order.Side == types.SideBuy {
		cost := fillPrice.Mul(qty).Add(fee)
		if cost.GreaterThan(b.cash) {
			return "", errors.Newf(errors.ErrCodeInsufficientBalance, "order cost %s exceeds available cash %s", cost, b.cash)
		}

		b.cash = b.cash.Sub(cost)

		h := b.holds[order.Symbol]
		h.Symbol = order.Symbol
		h.Quantity += order.Quantity
		h.TotalCost = h.TotalCost.Add(fillPrice.Mul(qty))
		b.holds[order.Symbol] = h
	} else {
		h, ok := b.holds[order.Symbol]
		if !ok || order.Quantity > h.Quantity {
			return "", errors.Newf(errors.ErrCodeInsufficientPosition, "insufficient position in %s to sell %d shares", order.Symbol, order.Quantity)
		}

		avgPrice := h.AveragePrice()
		proceeds := fillPrice.Mul(qty).Sub(fee)
		b.cash = b.cash.Add(proceeds)

		h.TotalCost = h.TotalCost.Sub(avgPrice.Mul(qty))
		h.Quantity -= order.Quantity

		if h.IsEmpty() {
			delete(b.holds, order.Symbol)
		} else {
			b.holds[order.Symbol] = h
		}
	}

	order.Fee = fee

	orderID := uuid.New().String()
	b.fills[orderID] = types.Fill{Status: types.FillFilled, RealPrice: fillPrice, Quantity: order.Quantity, Fee: fee}

	return orderID, nil
}

// CheckFill returns the previously recorded fill. SimBroker fills
// synchronously inside ExecuteOrder, so this always returns Filled for a
// known order id.
func (b *SimBroker) CheckFill(orderID string) (types.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.fills[orderID]
	if !ok {
		return types.Fill{}, errors.Newf(errors.ErrCodeFillQueryFailed, "unknown order id %s", orderID)
	}

	return f, nil
}

// CancelOrder is a no-op: SimBroker never has an order pending past
// ExecuteOrder's synchronous return.
func (b *SimBroker) CancelOrder(orderID string) error {
	return nil
}

// GetBalance returns cash plus the mark-to-market value of all holdings.
func (b *SimBroker) GetBalance() (types.Balance, error) {
	b.mu.Lock()
	holds := make(map[string]types.Holding, len(b.holds))
	for k, v := range b.holds {
		holds[k] = v
	}
	cash := b.cash
	b.mu.Unlock()

	total := cash

	for symbol, h := range holds {
		price, err := b.GetCurrentPrice(symbol, nil)
		if err != nil {
			return types.Balance{}, err
		}

		total = total.Add(price.Mul(decimal.NewFromInt(h.Quantity)))
	}

	return types.Balance{Cash: cash, TotalAssets: total}, nil
}

// GetAveragePrice returns the pre-sell average cost basis for symbol. The
// Broker reconciler must call this before ExecuteOrder on a sell so the
// position is still present (spec §4.4).
func (b *SimBroker) GetAveragePrice(symbol string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holds[symbol]
	if !ok || h.Quantity == 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodePositionNotFound, "no position in %s", symbol)
	}

	return h.AveragePrice(), nil
}

// GetCurrentPrice returns the close of the 1-minute bar for symbol at at,
// or at the clock's current instant if at is nil.
func (b *SimBroker) GetCurrentPrice(symbol string, at *time.Time) (decimal.Decimal, error) {
	instant := b.clock.Now()
	if at != nil {
		instant = *at
	}

	date := timeservice.FormatDate(instant)
	hm := instant.Format("1504")

	bar, err := b.md.OneMinuteBar(symbol, date, hm)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrCodeMarketDataMissing, err, "no price for %s at %s %s", symbol, date, hm)
	}

	return bar.Close, nil
}
