// Command daytrader is the single entry point described in spec §6: it
// loads a TOML configuration file, assembles every owned component in
// dependency order (store → features → predictor → time service →
// execution backend → broker → strategy → runner), and drives the runner's
// event loop to completion. Grounded on the teacher's cmd/market/main.go
// urfave/cli/v3.Command{Flags, Action} shape.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/kisquant/daytrader/internal/auth"
	"github.com/kisquant/daytrader/internal/broker"
	"github.com/kisquant/daytrader/internal/brokerclient"
	"github.com/kisquant/daytrader/internal/calendar"
	"github.com/kisquant/daytrader/internal/config"
	"github.com/kisquant/daytrader/internal/dashboard"
	"github.com/kisquant/daytrader/internal/execution"
	"github.com/kisquant/daytrader/internal/execution/liveclient"
	"github.com/kisquant/daytrader/internal/execution/simbroker"
	"github.com/kisquant/daytrader/internal/features"
	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/marketdata"
	"github.com/kisquant/daytrader/internal/predictor"
	"github.com/kisquant/daytrader/internal/resilience"
	"github.com/kisquant/daytrader/internal/runner"
	"github.com/kisquant/daytrader/internal/store"
	"github.com/kisquant/daytrader/internal/strategy"
	"github.com/kisquant/daytrader/internal/timeservice"
	"github.com/kisquant/daytrader/internal/types"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // best-effort flush on exit

	mode := types.Mode(cfg.Trading.DefaultMode)
	if override := cmd.String("mode"); override != "" {
		mode = types.Mode(override)
	}

	cal, err := calendar.Load(cfg.TimeManagement.TradingDatesFilePath, cfg.TimeManagement.SpecialStartDatesFilePath)
	if err != nil {
		return err
	}

	md, err := marketdata.Open(cfg.Database.OneMinuteBarsPath, cfg.Database.FiveMinuteBarsPath, cfg.Database.DailyBarsPath)
	if err != nil {
		return err
	}
	defer md.Close()

	st, err := store.Open(cfg.Database.TradingStorePath, log)
	if err != nil {
		return err
	}
	defer st.Close()

	inclusion, err := readLines(cfg.OnnxModel.InclusionListPath)
	if err != nil {
		return err
	}

	extractor := features.New(md, inclusion, 30, 15)

	scorer, err := predictor.NewWasmScorer(ctx, cfg.OnnxModel.ModelPath)
	if err != nil {
		return err
	}
	defer scorer.Close() //nolint:errcheck // best-effort teardown

	pred := predictor.New(scorer)

	hours, err := timeservice.ParseMarketHours(
		cfg.MarketHours.DataPrepTime,
		cfg.MarketHours.TradingStart,
		cfg.MarketHours.LastUpdateTime,
		cfg.MarketHours.MarketClose,
	)
	if err != nil {
		return err
	}

	windowStart, err := timeservice.ParseTimeOfDay(cfg.MarketHours.TradingStart)
	if err != nil {
		return err
	}

	windowEnd, err := timeservice.ParseTimeOfDay(cfg.MarketHours.TradingEnd)
	if err != nil {
		return err
	}

	start, err := startingInstant(cfg, mode)
	if err != nil {
		return err
	}

	ts := timeservice.New(cal, hours, cfg.TimeManagement.SpecialStartTimeOffsetMins, mode, start, time.Second, time.Minute)

	backend, err := buildBackend(cfg, mode, md, ts, log)
	if err != nil {
		return err
	}

	bundle := execution.NewApiBundle(mode, backend)
	brk := broker.New(backend, st, ts, log)

	entryTime, err := timeservice.ParseTimeOfDay(cfg.Strategy.EntryTime)
	if err != nil {
		return err
	}

	forceCloseTime, err := timeservice.ParseTimeOfDay(cfg.Strategy.ForceCloseTime)
	if err != nil {
		return err
	}

	stratCfg := strategy.Config{
		StopLossPct:      decimal.NewFromFloat(cfg.Strategy.StopLossPct),
		TakeProfitPct:    decimal.NewFromFloat(cfg.Strategy.TakeProfitPct),
		EntryTime:        entryTime,
		ForceCloseTime:   forceCloseTime,
		EntryAssetRatio:  decimal.NewFromFloat(cfg.Strategy.EntryAssetRatio),
		FixedEntryAmount: decimal.NewFromFloat(cfg.Strategy.FixedEntryAmount),
	}
	strat := strategy.New(stratCfg, backend, extractor, pred, ts)

	runnerCfg := runner.Config{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		EndDate:     cfg.TimeManagement.EndDate,
	}

	if mode != types.ModeBacktest {
		runnerCfg.EndDate = ""
	}

	r := runner.New(runnerCfg, ts, cal, brk, strat, st, bundle, log)

	if cmd.Bool("tui") {
		tui := dashboard.New()
		r.OnStatus(tui.OnStatus)

		return tui.Run(ctx, r.Run)
	}

	return r.Run()
}

// buildBackend constructs the execution.Backend appropriate for mode: a
// SimBroker for backtest, a LiveClient for paper/real wired to the
// matching korea_investment_api profile (spec §4.3/§4.7).
func buildBackend(cfg config.Config, mode types.Mode, md *marketdata.Store, ts *timeservice.TimeService, log *logger.Logger) (execution.Backend, error) {
	if mode == types.ModeBacktest {
		simCfg := simbroker.Config{
			BuyFeeRate:       decimal.NewFromFloat(cfg.Backtest.BuyFeeRate),
			SellFeeRate:      decimal.NewFromFloat(cfg.Backtest.SellFeeRate),
			BuySlippageRate:  decimal.NewFromFloat(cfg.Backtest.BuySlippageRate),
			SellSlippageRate: decimal.NewFromFloat(cfg.Backtest.SellSlippageRate),
		}

		return simbroker.New(md, ts, simCfg, decimal.NewFromFloat(cfg.Trading.InitialCapital)), nil
	}

	profile := cfg.KoreaInvestmentAPI.Paper
	if mode == types.ModeLive {
		profile = cfg.KoreaInvestmentAPI.Real
	}

	httpClient := brokerclient.New(profile.BaseURL)

	refresh := func() (auth.Token, error) {
		resp, err := httpClient.IssueToken(context.Background(), profile.AppKey, profile.AppSecret)
		if err != nil {
			return auth.Token{}, err
		}

		now := time.Now()

		return auth.Token{
			AccessToken:      resp.AccessToken,
			TokenType:        resp.TokenType,
			ExpiresInSeconds: resp.ExpiresIn,
			IssuedAt:         now,
			ExpiresAt:        now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		}, nil
	}

	authMgr := auth.NewManager(cfg.TokenManagement.TokenFilePath, time.Duration(cfg.TokenManagement.RefreshSkewHours)*time.Hour, refresh, log)
	retrier := resilience.New(resilience.DefaultPolicy(), log)

	return liveclient.New(httpClient, authMgr, retrier), nil
}

// startingInstant returns the virtual clock's initial value: midnight of
// time_management.start_date in backtest, wall-clock now otherwise.
func startingInstant(cfg config.Config, mode types.Mode) (time.Time, error) {
	if mode != types.ModeBacktest {
		return time.Now(), nil
	}

	t, err := time.ParseInLocation("20060102", cfg.TimeManagement.StartDate, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time_management.start_date %q: %w", cfg.TimeManagement.StartDate, err)
	}

	return t, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		lines = append(lines, line)
	}

	return lines, scanner.Err()
}

func main() {
	cmd := &cli.Command{
		Name:  "daytrader",
		Usage: "Run the intraday trading engine in backtest, paper, or real mode",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the TOML configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Override trading.default_mode: real, paper, or backtest",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live status dashboard while running",
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
