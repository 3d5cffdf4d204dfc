// Package strategy implements the single-position intraday state machine
// from spec §4.5: WaitingForEntry, Holding, Exiting, Done. Grounded on the
// callback-driven lifecycle shape of the teacher's internal/trading/engine/
// engine.go (LiveTradingCallbacks: OnOrderFilled/OnOrderRejected hooks
// dispatched around a trading loop), adapted from callback dispatch to an
// explicit state enum since this system requires an observable
// WaitingForEntry/Holding/Exiting/Done machine rather than opaque callbacks.
package strategy

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/execution"
	"github.com/kisquant/daytrader/internal/features"
	"github.com/kisquant/daytrader/internal/predictor"
	"github.com/kisquant/daytrader/internal/timeservice"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

// State is one of the four stages of the intraday cycle (spec §4.5).
type State string

const (
	WaitingForEntry State = "waiting_for_entry"
	Holding         State = "holding"
	Exiting         State = "exiting"
	Done            State = "done"
)

// Config holds the thresholds and timing read from config.StrategyConfig,
// plus the pre-parsed HH:MM:SS offsets TimeService already uses.
type Config struct {
	StopLossPct      decimal.Decimal
	TakeProfitPct    decimal.Decimal
	EntryTime        time.Duration // offset from midnight
	ForceCloseTime   time.Duration
	EntryAssetRatio  decimal.Decimal
	FixedEntryAmount decimal.Decimal
}

// Clock is the subset of TimeService Strategy needs.
type Clock interface {
	Now() time.Time
	SpecialOffset(date string) time.Duration
}

var _ Clock = (*timeservice.TimeService)(nil)

// Strategy owns the current state and the single open position, and
// decides what order (if any) to submit in response to each TimeEvent.
type Strategy struct {
	cfg       Config
	backend   execution.Backend
	extractor *features.Extractor
	predictor *predictor.Predictor
	clock     Clock

	state    State
	symbol   string
	quantity int64
}

// New constructs a Strategy in the WaitingForEntry state.
func New(cfg Config, backend execution.Backend, extractor *features.Extractor, pred *predictor.Predictor, clock Clock) *Strategy {
	return &Strategy{cfg: cfg, backend: backend, extractor: extractor, predictor: pred, clock: clock, state: WaitingForEntry}
}

// State reports the current state.
func (s *Strategy) State() State { return s.state }

// Symbol reports the currently held/exiting symbol, empty when WaitingForEntry or Done.
func (s *Strategy) Symbol() string { return s.symbol }

// OnOvernight resets per-day state back to WaitingForEntry (spec §4.5 "any → Overnight").
func (s *Strategy) OnOvernight() {
	s.state = WaitingForEntry
	s.symbol = ""
	s.quantity = 0
}

// OnFilled advances Exiting to Done once the exit order's fill is confirmed.
func (s *Strategy) OnFilled(trade types.Trade) {
	if s.state == Exiting && trade.Symbol == s.symbol && trade.Side == types.SideSell {
		s.state = Done
	}
}

// shiftedTime applies date's special-start offset to a base clock-time.
func (s *Strategy) shiftedTime(base time.Duration, date string) time.Duration {
	return base + s.clock.SpecialOffset(date)
}

// OnUpdate evaluates one Update/MarketOpen tick at instant now on trading
// day date, within the feature window windowStart..windowEnd (both inclusive). It returns
// an order to submit, or nil if no action is warranted this tick.
func (s *Strategy) OnUpdate(now time.Time, date, windowStart, windowEnd string, isFirstTradingDay bool, prevDate string) (*types.Order, error) {
	switch s.state {
	case WaitingForEntry:
		return s.evaluateEntry(now, date, windowStart, windowEnd, isFirstTradingDay, prevDate)
	case Holding:
		return s.evaluateHolding(now, date)
	case Exiting, Done:
		return nil, nil
	default:
		return nil, errors.Newf(errors.ErrCodeStrategyRuntimeError, "unknown strategy state %q", s.state)
	}
}

func (s *Strategy) entryTimeOf(now time.Time, date string) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	return midnight.Add(s.shiftedTime(s.cfg.EntryTime, date))
}

func (s *Strategy) forceCloseTimeOf(now time.Time, date string) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	return midnight.Add(s.shiftedTime(s.cfg.ForceCloseTime, date))
}

// evaluateEntry implements the WaitingForEntry row of spec §4.5's table:
// only at entry_time does the predictor get consulted; every other Update
// is a no-op.
func (s *Strategy) evaluateEntry(now time.Time, date, windowStart, windowEnd string, isFirstTradingDay bool, prevDate string) (*types.Order, error) {
	entryAt := s.entryTimeOf(now, date)
	if !sameMinute(now, entryAt) {
		return nil, nil
	}

	universe, err := s.extractor.Universe(date, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	candidates := make([]features.Candidate, 0, len(universe))

	for _, sym := range universe {
		c, err := s.extractor.Extract(sym, date, windowStart, windowEnd, isFirstTradingDay, prevDate)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, c)
	}

	choice, err := s.predictor.Predict(candidates)
	if err != nil {
		return nil, err
	}

	if choice.IsNone() {
		return nil, nil
	}

	return s.buildEntryOrder(choice.Unwrap(), now)
}

// buildEntryOrder sizes and builds the Buy per spec §4.5's order-sizing
// rule: prefer FixedEntryAmount if cash covers it, else EntryAssetRatio ×
// available cash; quantity floors to a whole share.
func (s *Strategy) buildEntryOrder(symbol string, now time.Time) (*types.Order, error) {
	price, err := s.backend.GetCurrentPrice(symbol, &now)
	if err != nil {
		return nil, err
	}

	if price.IsZero() {
		return nil, errors.Newf(errors.ErrCodeMarketDataMissing, "current price for %s is zero, cannot size order", symbol)
	}

	balance, err := s.backend.GetBalance()
	if err != nil {
		return nil, err
	}

	budget := s.cfg.FixedEntryAmount
	if budget.IsZero() || budget.GreaterThan(balance.Cash) {
		budget = balance.Cash.Mul(s.cfg.EntryAssetRatio)
	}

	qtyFloat, _ := budget.Div(price).Float64()
	qty := int64(math.Floor(qtyFloat))

	if qty <= 0 {
		return nil, nil
	}

	s.state = Holding
	s.symbol = symbol
	s.quantity = qty

	return &types.Order{Symbol: symbol, Side: types.SideBuy, Quantity: qty, Price: price}, nil
}

// evaluateHolding implements the Holding rows: stop-loss, take-profit, and
// time-based force-close all transition to Exiting with a full-position Sell.
func (s *Strategy) evaluateHolding(now time.Time, date string) (*types.Order, error) {
	avg, err := s.backend.GetAveragePrice(s.symbol)
	if err != nil {
		return nil, err
	}

	current, err := s.backend.GetCurrentPrice(s.symbol, &now)
	if err != nil {
		return nil, err
	}

	stopLossLine := avg.Mul(decimal.NewFromInt(1).Sub(s.cfg.StopLossPct))
	takeProfitLine := avg.Mul(decimal.NewFromInt(1).Add(s.cfg.TakeProfitPct))

	forceClose := sameMinute(now, s.forceCloseTimeOf(now, date))

	if current.GreaterThanOrEqual(takeProfitLine) || current.LessThanOrEqual(stopLossLine) || forceClose {
		s.state = Exiting

		return &types.Order{Symbol: s.symbol, Side: types.SideSell, Quantity: s.quantity, Price: current}, nil
	}

	return nil, nil
}

func sameMinute(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
