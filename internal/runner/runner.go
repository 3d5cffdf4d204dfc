// Package runner implements the control loop described in spec §2 and §5:
// a single-threaded, event-driven tick loop that owns TimeService, Broker,
// Strategy, Store, and an execution.ApiBundle, and wires them together in
// the fixed ordering the spec requires (reconcile before dispatch before
// overview update; per-day reset in Strategy, Broker, Store order). No
// teacher file plays this exact coordinating role — the teacher's closest
// analogue is the tick loop inside internal/backtest/engine/engine_v1's
// Run method, which this package generalizes from a backtest-only loop to
// one that is mode-agnostic via TimeService and ApiBundle.
package runner

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kisquant/daytrader/internal/broker"
	"github.com/kisquant/daytrader/internal/calendar"
	"github.com/kisquant/daytrader/internal/execution"
	"github.com/kisquant/daytrader/internal/features"
	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/store"
	"github.com/kisquant/daytrader/internal/strategy"
	"github.com/kisquant/daytrader/internal/timeservice"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Config holds runner-level parameters that belong to no single owned
// component: the feature window's base (unshifted, pre-special-start)
// bounds, and the optional backtest end date (spec §6's time_management
// end_date, the distinguished non-error termination of spec §7/§9).
type Config struct {
	WindowStart time.Duration
	WindowEnd   time.Duration
	EndDate     string // YYYYMMDD, empty disables the end-date termination (paper/live)
}

// StatusListener is an optional observer notified after every tick, used by
// the dashboard (spec §4.11) to render live/paper status without the
// Runner ever blocking on or calling back into the UI.
type StatusListener func(Status)

// Status is a snapshot of Runner state after one tick, sent to a
// StatusListener on a best-effort, non-blocking basis.
type Status struct {
	Event         types.TimeEvent
	StrategyState strategy.State
	Symbol        string
	PendingOrders int
	TotalAssets   decimal.Decimal
}

// Runner owns every long-lived component per spec §3's ownership note and
// drives them through the tick loop.
type Runner struct {
	cfg Config

	ts     *timeservice.TimeService
	cal    *calendar.TradingCalendar
	brk    *broker.Broker
	strat  *strategy.Strategy
	st     *store.Store
	bundle *execution.ApiBundle
	log    *logger.Logger

	onStatus StatusListener

	currentDate       string
	prevDate          string
	isFirstTradingDay bool
	windowStart       string
	windowEnd         string
	dayOpened         bool
}

// New wires a Runner around its already-constructed dependencies. Building
// those dependencies (config → calendar → market data → store → features →
// predictor → time service → backend → bundle → broker → strategy) is
// cmd/daytrader's job.
func New(cfg Config, ts *timeservice.TimeService, cal *calendar.TradingCalendar, brk *broker.Broker, strat *strategy.Strategy, st *store.Store, bundle *execution.ApiBundle, log *logger.Logger) *Runner {
	r := &Runner{cfg: cfg, ts: ts, cal: cal, brk: brk, strat: strat, st: st, bundle: bundle, log: log}

	brk.OnFilled(strat.OnFilled)
	brk.OnRejected(func(order types.Order, reason string) {
		log.Warn("order rejected", zap.String("symbol", order.Symbol), zap.String("reason", reason))
	})

	return r
}

// OnStatus registers a listener invoked after every successfully processed
// tick. Only one listener is supported; registering again replaces it.
func (r *Runner) OnStatus(fn StatusListener) { r.onStatus = fn }

// Run drives the event loop until a fatal error occurs or, in backtest,
// the configured end_date is passed — per spec §5/§7, the latter is a
// clean, non-error termination signaled by ErrCodeBacktestComplete.
func (r *Runner) Run() error {
	for {
		ev, err := r.ts.WaitUntilNextEvent()
		if err != nil {
			return r.terminate(ev, err)
		}

		if err := r.tick(ev); err != nil {
			if errors.HasCode(err, errors.ErrCodeBacktestComplete) {
				r.log.Info("backtest reached end_date, terminating cleanly", zap.String("date", ev.Date))

				return nil
			}

			return r.terminate(ev, err)
		}

		if r.onStatus != nil {
			r.onStatus(r.snapshot(ev))
		}
	}
}

// tick processes one TimeEvent per spec §5's fixed ordering: reconcile
// pending fills, dispatch to Strategy, update the daily Overview.
func (r *Runner) tick(ev types.TimeEvent) error {
	if err := r.brk.Reconcile(); err != nil {
		// Fill-query failure preserves the pending queue and the loop
		// continues on the next tick (spec §7) — it is not fatal.
		r.log.Warn("fill reconciliation failed, retrying next tick", zap.Error(err))

		return nil
	}

	switch ev.Tag {
	case types.EventDataPrep:
		return r.onDataPrep(ev)
	case types.EventMarketOpen, types.EventUpdate:
		return r.onUpdate(ev)
	case types.EventMarketClose:
		return r.onOverviewTick(ev)
	case types.EventOvernight:
		return r.onOvernight(ev)
	default:
		return errors.Newf(errors.ErrCodeStrategyRuntimeError, "unrecognized time event tag %q", ev.Tag)
	}
}

// onDataPrep establishes the day's derived state (previous trading day,
// first-trading-day flag, feature window) and captures the Overview's
// opening total-assets snapshot (spec §4.8, "insert_overview at DataPrep").
func (r *Runner) onDataPrep(ev types.TimeEvent) error {
	r.currentDate = ev.Date

	prev, ok := r.cal.PreviousTradingDay(ev.Date)
	r.prevDate = prev
	r.isFirstTradingDay = !ok

	offset := r.ts.SpecialOffset(ev.Date)
	r.windowStart, r.windowEnd = features.FeatureWindow(r.cfg.WindowStart, r.cfg.WindowEnd, offset)

	balance, err := r.bundle.Backend().GetBalance()
	if err != nil {
		return err
	}

	if err := r.st.InsertOverview(ev.Date, balance.TotalAssets); err != nil {
		return err
	}

	r.dayOpened = true

	return nil
}

// onUpdate dispatches the tick to Strategy and, if it emits an order,
// submits it through the Broker, then refreshes the Overview. A feature-
// extraction or prediction failure skips this entry opportunity without
// corrupting state (spec §7) rather than terminating the loop.
func (r *Runner) onUpdate(ev types.TimeEvent) error {
	order, err := r.strat.OnUpdate(ev.At, ev.Date, r.windowStart, r.windowEnd, r.isFirstTradingDay, r.prevDate)
	if err != nil {
		if isPredictionFailure(err) {
			r.log.Warn("prediction failed, skipping entry opportunity", zap.Error(err))

			return r.onOverviewTick(ev)
		}

		return err
	}

	if order != nil {
		if _, err := r.brk.SubmitOrder(*order); err != nil {
			return err
		}
	}

	return r.onOverviewTick(ev)
}

// onOverviewTick refreshes the running high/low/close snapshot for the
// current day (spec §4.8, "update_overview every tick").
func (r *Runner) onOverviewTick(ev types.TimeEvent) error {
	if !r.dayOpened {
		return nil
	}

	balance, err := r.bundle.Backend().GetBalance()
	if err != nil {
		return err
	}

	return r.st.UpdateOverview(ev.Date, balance.TotalAssets)
}

// onOvernight finalizes the day that just ended, resets per-day state in
// the fixed order spec §9 requires (Strategy, Broker queue, Store last),
// and terminates cleanly if the backtest's configured end_date has passed.
func (r *Runner) onOvernight(ev types.TimeEvent) error {
	if r.dayOpened {
		if err := r.st.FinishOverview(r.currentDate); err != nil {
			return err
		}
	}

	r.strat.OnOvernight()
	r.brk.ResetForNewDay()

	if err := r.st.ResetForNewDay(ev.Date); err != nil {
		return err
	}

	r.dayOpened = false

	if r.cfg.EndDate != "" && r.currentDate >= r.cfg.EndDate {
		return errors.New(errors.ErrCodeBacktestComplete, "reached configured end_date")
	}

	return nil
}

func isPredictionFailure(err error) bool {
	return errors.HasCode(err, errors.ErrCodeFeatureMissing) ||
		errors.HasCode(err, errors.ErrCodeFeatureVectorLength) ||
		errors.HasCode(err, errors.ErrCodePredictionModelIO) ||
		errors.HasCode(err, errors.ErrCodeNoDataFound)
}

// terminate logs the structured termination record spec §6 requires (last
// event, error kind, and — for a retry-exhausted failure — the attempts
// consumed are already logged by internal/resilience as they occur) and
// returns the error so the CLI exits non-zero.
func (r *Runner) terminate(ev types.TimeEvent, err error) error {
	r.log.Error("runner terminating",
		zap.String("last_event", string(ev.Tag)),
		zap.String("last_event_date", ev.Date),
		zap.Int("error_code", int(errors.GetCode(err))),
		zap.Error(err),
	)

	return err
}

func (r *Runner) snapshot(ev types.TimeEvent) Status {
	total, _ := r.bundle.Backend().GetBalance()

	return Status{
		Event:         ev,
		StrategyState: r.strat.State(),
		Symbol:        r.strat.Symbol(),
		PendingOrders: r.brk.PendingCount(),
		TotalAssets:   total.TotalAssets,
	}
}
