package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/kisquant/daytrader/internal/execution"
	"github.com/kisquant/daytrader/internal/features"
	"github.com/kisquant/daytrader/internal/marketdata"
	"github.com/kisquant/daytrader/internal/predictor"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

type fakeClock struct {
	now    time.Time
	offset time.Duration
}

func (c *fakeClock) Now() time.Time                          { return c.now }
func (c *fakeClock) SpecialOffset(date string) time.Duration { return c.offset }

// fakeBackend is a scriptable execution.Backend double for Strategy tests.
type fakeBackend struct {
	prices  map[string]decimal.Decimal
	avg     map[string]decimal.Decimal
	balance types.Balance
}

var _ execution.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{prices: map[string]decimal.Decimal{}, avg: map[string]decimal.Decimal{}}
}

func (f *fakeBackend) ExecuteOrder(order *types.Order) (string, error) { return "order-1", nil }
func (f *fakeBackend) CheckFill(orderID string) (types.Fill, error)    { return types.Fill{}, nil }
func (f *fakeBackend) CancelOrder(orderID string) error                { return nil }
func (f *fakeBackend) GetBalance() (types.Balance, error)              { return f.balance, nil }

func (f *fakeBackend) GetAveragePrice(symbol string) (decimal.Decimal, error) {
	p, ok := f.avg[symbol]
	if !ok {
		return decimal.Zero, errors.Newf(errors.ErrCodePositionNotFound, "no position in %s", symbol)
	}

	return p, nil
}

func (f *fakeBackend) GetCurrentPrice(symbol string, at *time.Time) (decimal.Decimal, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Newf(errors.ErrCodeMarketDataMissing, "no price for %s", symbol)
	}

	return p, nil
}

type StrategyTestSuite struct {
	suite.Suite

	md  *marketdata.Store
	ext *features.Extractor
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupTest() {
	md, err := marketdata.Open(":memory:", ":memory:", ":memory:")
	suite.Require().NoError(err)

	suite.md = md
	suite.ext = features.New(md, nil, 30, 15)
}

func (suite *StrategyTestSuite) TearDownTest() {
	suite.Require().NoError(suite.md.Close())
}

func (suite *StrategyTestSuite) seedBar(symbol, date, hhmm string, close float64, volume int64) {
	suite.Require().NoError(suite.md.InsertOneMinuteBar(marketdata.Bar{
		Symbol: symbol, Date: date, Time: hhmm,
		Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close),
		Low: decimal.NewFromFloat(close), Close: decimal.NewFromFloat(close), Volume: volume,
	}))
}

func (suite *StrategyTestSuite) baseConfig() Config {
	return Config{
		StopLossPct:      decimal.NewFromFloat(0.05),
		TakeProfitPct:    decimal.NewFromFloat(0.1),
		EntryTime:        9*time.Hour + 30*time.Minute,
		ForceCloseTime:   15 * time.Hour,
		EntryAssetRatio:  decimal.NewFromFloat(0.5),
		FixedEntryAmount: decimal.Zero,
	}
}

func (suite *StrategyTestSuite) TestWaitingForEntryNoOpOutsideEntryWindow() {
	be := newFakeBackend()
	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{Probability: 0.9}), &fakeClock{})

	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", true, "")
	suite.Require().NoError(err)
	suite.Nil(order)
	suite.Equal(WaitingForEntry, s.State())
}

func (suite *StrategyTestSuite) seedPrevDay(symbol, prevDate string, close float64, volume int64) {
	suite.Require().NoError(suite.md.InsertDailyBar(marketdata.Bar{
		Symbol: symbol, Date: prevDate,
		Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close),
		Low: decimal.NewFromFloat(close), Close: decimal.NewFromFloat(close), Volume: volume,
	}))
}

func (suite *StrategyTestSuite) TestEntrySubmitsBuyWhenPredictorPicksSymbol() {
	suite.seedBar("005930", "20240102", "0900", 1000, 100)
	suite.seedPrevDay("005930", "20240101", 990, 90)

	be := newFakeBackend()
	be.prices["005930"] = decimal.NewFromInt(1000)
	be.balance = types.Balance{Cash: decimal.NewFromInt(1_000_000)}

	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{Probability: 0.9}), &fakeClock{})

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Require().NotNil(order)
	suite.Equal(types.SideBuy, order.Side)
	suite.Equal(Holding, s.State())
	suite.Equal("005930", s.Symbol())
}

func (suite *StrategyTestSuite) TestEntrySkipsWhenNoCandidateClearsThreshold() {
	suite.seedBar("005930", "20240102", "0900", 1000, 100)
	suite.seedPrevDay("005930", "20240101", 990, 90)

	be := newFakeBackend()
	be.prices["005930"] = decimal.NewFromInt(1000)
	be.balance = types.Balance{Cash: decimal.NewFromInt(1_000_000)}

	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{Probability: 0.1}), &fakeClock{})

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Nil(order)
	suite.Equal(WaitingForEntry, s.State())
}

func (suite *StrategyTestSuite) TestEntryOnFirstTradingDaySurfacesExplicitError() {
	suite.seedBar("005930", "20240102", "0900", 1000, 100)

	be := newFakeBackend()
	be.prices["005930"] = decimal.NewFromInt(1000)
	be.balance = types.Balance{Cash: decimal.NewFromInt(1_000_000)}

	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{Probability: 0.9}), &fakeClock{})

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	_, err := s.OnUpdate(now, "20240102", "0900", "0930", true, "")
	suite.Error(err, "day2 feature family must surface an explicit error on the first trading day, never a silent zero")
}

func (suite *StrategyTestSuite) holdingStrategy(be *fakeBackend, clock *fakeClock) *Strategy {
	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{}), clock)
	s.state = Holding
	s.symbol = "005930"
	s.quantity = 10

	return s
}

func (suite *StrategyTestSuite) TestHoldingExitsOnStopLoss() {
	be := newFakeBackend()
	be.avg["005930"] = decimal.NewFromInt(1000)
	be.prices["005930"] = decimal.NewFromInt(940) // 6% down, past 5% stop-loss

	s := suite.holdingStrategy(be, &fakeClock{})

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Require().NotNil(order)
	suite.Equal(types.SideSell, order.Side)
	suite.Equal(Exiting, s.State())
}

func (suite *StrategyTestSuite) TestHoldingExitsOnTakeProfit() {
	be := newFakeBackend()
	be.avg["005930"] = decimal.NewFromInt(1000)
	be.prices["005930"] = decimal.NewFromInt(1150) // 15% up, past 10% take-profit

	s := suite.holdingStrategy(be, &fakeClock{})

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Require().NotNil(order)
	suite.Equal(types.SideSell, order.Side)
}

func (suite *StrategyTestSuite) TestHoldingExitsOnForceCloseTime() {
	be := newFakeBackend()
	be.avg["005930"] = decimal.NewFromInt(1000)
	be.prices["005930"] = decimal.NewFromInt(1000) // flat, neither sl nor tp

	s := suite.holdingStrategy(be, &fakeClock{})

	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Require().NotNil(order)
	suite.Equal(types.SideSell, order.Side)
}

func (suite *StrategyTestSuite) TestHoldingNoOpBetweenThresholds() {
	be := newFakeBackend()
	be.avg["005930"] = decimal.NewFromInt(1000)
	be.prices["005930"] = decimal.NewFromInt(1020)

	s := suite.holdingStrategy(be, &fakeClock{})

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Nil(order)
	suite.Equal(Holding, s.State())
}

func (suite *StrategyTestSuite) TestOnFilledTransitionsExitingToDone() {
	s := suite.holdingStrategy(newFakeBackend(), &fakeClock{})
	s.state = Exiting

	s.OnFilled(types.Trade{Symbol: "005930", Side: types.SideSell})
	suite.Equal(Done, s.State())
}

func (suite *StrategyTestSuite) TestOvernightResetsToWaitingForEntry() {
	s := suite.holdingStrategy(newFakeBackend(), &fakeClock{})
	s.state = Done

	s.OnOvernight()
	suite.Equal(WaitingForEntry, s.State())
	suite.Empty(s.Symbol())
}

func (suite *StrategyTestSuite) TestSpecialStartShiftsEntryTime() {
	be := newFakeBackend()
	be.prices["005930"] = decimal.NewFromInt(1000)
	be.balance = types.Balance{Cash: decimal.NewFromInt(1_000_000)}

	suite.seedBar("005930", "20240102", "1000", 1000, 100)
	suite.seedPrevDay("005930", "20240101", 990, 90)

	clock := &fakeClock{offset: 30 * time.Minute}
	s := New(suite.baseConfig(), be, suite.ext, predictor.New(predictor.NopScorer{Probability: 0.9}), clock)

	// entry_time 09:30 + 30m special-start offset = 10:00
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	order, err := s.OnUpdate(now, "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Nil(order, "unshifted entry time must not fire on a special-start date")

	now = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	order, err = s.OnUpdate(now, "20240102", "1000", "1030", false, "20240101")
	suite.Require().NoError(err)
	suite.NotNil(order, "shifted entry time must fire on a special-start date")
}
