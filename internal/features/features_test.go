package features

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/kisquant/daytrader/internal/marketdata"
)

type FeaturesTestSuite struct {
	suite.Suite

	md *marketdata.Store
}

func TestFeaturesSuite(t *testing.T) {
	suite.Run(t, new(FeaturesTestSuite))
}

func (suite *FeaturesTestSuite) SetupTest() {
	md, err := marketdata.Open(":memory:", ":memory:", ":memory:")
	suite.Require().NoError(err)

	suite.md = md
}

func (suite *FeaturesTestSuite) TearDownTest() {
	suite.Require().NoError(suite.md.Close())
}

func (suite *FeaturesTestSuite) seedMinuteBar(symbol, date, hhmm string, close float64, volume int64) {
	suite.Require().NoError(suite.md.InsertOneMinuteBar(marketdata.Bar{
		Symbol: symbol, Date: date, Time: hhmm,
		Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close + 1),
		Low: decimal.NewFromFloat(close - 1), Close: decimal.NewFromFloat(close), Volume: volume,
	}))
}

func (suite *FeaturesTestSuite) seedDailyBar(symbol, date string, close float64, volume int64) {
	suite.Require().NoError(suite.md.InsertDailyBar(marketdata.Bar{
		Symbol: symbol, Date: date,
		Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close),
		Low: decimal.NewFromFloat(close), Close: decimal.NewFromFloat(close), Volume: volume,
	}))
}

func (suite *FeaturesTestSuite) TestUniverseRanksByTradedValueDescending() {
	suite.seedMinuteBar("A", "20240102", "0900", 100, 1000)
	suite.seedMinuteBar("B", "20240102", "0900", 100, 5000)
	suite.seedMinuteBar("C", "20240102", "0900", 100, 10)

	ext := New(suite.md, nil, 30, 15)

	universe, err := ext.Universe("20240102", "0900", "0930")
	suite.Require().NoError(err)
	suite.Equal([]string{"B", "A", "C"}, universe)
}

func (suite *FeaturesTestSuite) TestUniverseFiltersByInclusionList() {
	suite.seedMinuteBar("A", "20240102", "0900", 100, 1000)
	suite.seedMinuteBar("B", "20240102", "0900", 100, 5000)

	ext := New(suite.md, []string{"A"}, 30, 15)

	universe, err := ext.Universe("20240102", "0900", "0930")
	suite.Require().NoError(err)
	suite.Equal([]string{"A"}, universe)
}

func (suite *FeaturesTestSuite) TestUniverseTruncatesToMaxCandidates() {
	for _, sym := range []string{"A", "B", "C"} {
		suite.seedMinuteBar(sym, "20240102", "0900", 100, 100)
	}

	ext := New(suite.md, nil, 30, 2)

	universe, err := ext.Universe("20240102", "0900", "0930")
	suite.Require().NoError(err)
	suite.Len(universe, 2)
}

func (suite *FeaturesTestSuite) TestExtractComputesFullVector() {
	suite.seedMinuteBar("A", "20240102", "0900", 100, 1000)
	suite.seedMinuteBar("A", "20240102", "0905", 105, 1200)
	suite.seedDailyBar("A", "20240101", 95, 900)

	ext := New(suite.md, nil, 30, 15)

	cand, err := ext.Extract("A", "20240102", "0900", "0930", false, "20240101")
	suite.Require().NoError(err)
	suite.Equal("A", cand.Symbol)
	suite.Len(cand.Vector, len(FieldNames))
}

func (suite *FeaturesTestSuite) TestExtractOnFirstTradingDaySurfacesExplicitError() {
	suite.seedMinuteBar("A", "20240102", "0900", 100, 1000)

	ext := New(suite.md, nil, 30, 15)

	_, err := ext.Extract("A", "20240102", "0900", "0930", true, "")
	suite.Error(err, "previous-day-relative features must error, not silently zero, on the first trading day")
}

func (suite *FeaturesTestSuite) TestExtractMissingPrevDayBarErrors() {
	suite.seedMinuteBar("A", "20240102", "0900", 100, 1000)

	ext := New(suite.md, nil, 30, 15)

	_, err := ext.Extract("A", "20240102", "0900", "0930", false, "20240101")
	suite.Error(err)
}

func (suite *FeaturesTestSuite) TestExtractNoBarsInWindowErrors() {
	ext := New(suite.md, nil, 30, 15)

	_, err := ext.Extract("ZZZ", "20240102", "0900", "0930", false, "20240101")
	suite.Error(err)
}

func TestRSIAllGainsReturnsOneHundred(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = float64(100 + i)
	}

	if got := rsi(closes, 14); got != 100 {
		t.Fatalf("expected rsi 100 for all-gains series, got %v", got)
	}
}

func TestNormalizeNaNInfZeroesInvalidValues(t *testing.T) {
	vec := []float64{1, 0.0 / zero(), 1.0 / zero(), -1.0 / zero()}
	normalizeNaNInf(vec)

	for i, v := range vec[1:] {
		if v != 0 {
			t.Fatalf("expected index %d to normalize to 0, got %v", i+1, v)
		}
	}
}

func zero() float64 { return 0 }
