package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/types"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	lg, err := logger.NewLogger()
	suite.Require().NoError(err)

	s, err := Open(":memory:", lg)
	suite.Require().NoError(err)
	suite.store = s
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func (suite *StoreTestSuite) TestSaveAndReadTradeRoundTrip() {
	trade := types.Trade{
		Date:      "20240102",
		Time:      "0905",
		Symbol:    "005930",
		Side:      types.SideBuy,
		Quantity:  19,
		Price:     decimal.NewFromInt(50000),
		RealPrice: decimal.NewFromFloat(50250),
		Fee:       decimal.NewFromFloat(110.55),
		Note:      "entry",
	}

	suite.Require().NoError(suite.store.SaveTrade(trade, decimal.Zero))

	got, err := suite.store.TradesForDate("20240102")
	suite.Require().NoError(err)
	suite.Require().Len(got, 1)

	suite.Equal(trade.Date, got[0].Date)
	suite.Equal(trade.Time, got[0].Time)
	suite.Equal(trade.Symbol, got[0].Symbol)
	suite.Equal(trade.Side, got[0].Side)
	suite.Equal(trade.Quantity, got[0].Quantity)
	suite.True(trade.Price.Equal(got[0].Price))
	suite.True(trade.RealPrice.Equal(got[0].RealPrice))
	suite.True(trade.Fee.Equal(got[0].Fee))
	suite.Equal(trade.Note, got[0].Note)
}

func (suite *StoreTestSuite) TestOverviewLifecycleZeroTradeDay() {
	date := "20240102"
	open := decimal.NewFromInt(10000000)

	suite.Require().NoError(suite.store.InsertOverview(date, open))
	suite.Require().NoError(suite.store.UpdateOverview(date, open))
	suite.Require().NoError(suite.store.FinishOverview(date))

	ov, err := suite.store.GetOverview(date)
	suite.Require().NoError(err)

	suite.True(ov.Close.Equal(ov.Open))
	suite.True(ov.Volume.IsZero())
	suite.True(ov.Fees.IsZero())
	suite.True(ov.Roi.IsZero())
}

func (suite *StoreTestSuite) TestOverviewAggregatesFromTrades() {
	date := "20240103"
	open := decimal.NewFromInt(10000000)

	suite.Require().NoError(suite.store.InsertOverview(date, open))

	buy := types.Trade{
		Date: date, Time: "0905", Symbol: "005930", Side: types.SideBuy,
		Quantity: 19, Price: decimal.NewFromInt(50000), RealPrice: decimal.NewFromFloat(50250), Fee: decimal.NewFromFloat(110.55),
	}
	sell := types.Trade{
		Date: date, Time: "1520", Symbol: "005930", Side: types.SideSell,
		Quantity: 19, Price: decimal.NewFromInt(51000), RealPrice: decimal.NewFromFloat(50745), Fee: decimal.NewFromFloat(111.64),
		RoiPct: decimal.NewFromFloat(0.0098),
	}

	suite.Require().NoError(suite.store.SaveTrade(buy, decimal.Zero))
	suite.Require().NoError(suite.store.SaveTrade(sell, decimal.NewFromInt(50250)))

	closeAssets := open.Add(sell.Notional()).Sub(buy.Notional()).Sub(buy.Fee).Sub(sell.Fee)
	suite.Require().NoError(suite.store.UpdateOverview(date, closeAssets))
	suite.Require().NoError(suite.store.FinishOverview(date))

	ov, err := suite.store.GetOverview(date)
	suite.Require().NoError(err)

	wantVolume := buy.Notional().Add(sell.Notional())
	wantFees := buy.Fee.Add(sell.Fee)

	suite.True(ov.Volume.Equal(wantVolume), "volume: got %s want %s", ov.Volume, wantVolume)
	suite.True(ov.Fees.Equal(wantFees), "fees: got %s want %s", ov.Fees, wantFees)
	suite.True(ov.Close.GreaterThan(ov.Open))
}

func (suite *StoreTestSuite) TestUpdateOverviewTracksHighLow() {
	date := "20240104"
	open := decimal.NewFromInt(1000)

	suite.Require().NoError(suite.store.InsertOverview(date, open))
	suite.Require().NoError(suite.store.UpdateOverview(date, decimal.NewFromInt(1200)))
	suite.Require().NoError(suite.store.UpdateOverview(date, decimal.NewFromInt(900)))
	suite.Require().NoError(suite.store.UpdateOverview(date, decimal.NewFromInt(1050)))

	ov, err := suite.store.GetOverview(date)
	suite.Require().NoError(err)

	suite.True(ov.High.Equal(decimal.NewFromInt(1200)))
	suite.True(ov.Low.Equal(decimal.NewFromInt(900)))
	suite.True(ov.Close.Equal(decimal.NewFromInt(1050)))
}

func (suite *StoreTestSuite) TestUpdateOverviewMissingDateErrors() {
	err := suite.store.UpdateOverview("20240199", decimal.NewFromInt(1))
	suite.Error(err)
}
