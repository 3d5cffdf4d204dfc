// Package features extracts the fixed-length feature vector Predictor
// scores candidates with: a top-K-by-traded-value universe filtered by an
// inclusion list, and the day1-day4 feature families over each candidate's
// bars. The technical-indicator math (RSI/EMA/MA) is ported from the
// teacher's internal/indicator package, rewired to read from
// internal/marketdata instead of the teacher's backtest datasource cache.
package features

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/marketdata"
	"github.com/kisquant/daytrader/pkg/errors"
)

// FieldNames is the ordered feature list the scorer's input dimensionality
// must match exactly. Loaded from the onnx_model.feature_list_path file by
// callers; this is the set the Extractor below knows how to compute.
var FieldNames = []string{
	"day1_open_to_window_close_pct",
	"day1_window_volume",
	"day1_window_high_low_spread_pct",
	"day2_volume_ratio_vs_prevday",
	"day2_close_ratio_vs_prevday",
	"day3_rsi14",
	"day3_ma5",
	"day4_ema12_minus_ema26",
}

// Candidate is a symbol's computed feature vector, aligned to FieldNames.
type Candidate struct {
	Symbol string
	Vector []float64
}

// Extractor builds Candidate feature vectors from the 1-minute and daily
// bar stores.
type Extractor struct {
	md        *marketdata.Store
	inclusion map[string]struct{} // nil means no filtering
	topK      int
	maxCand   int
}

// New constructs an Extractor. inclusionList may be nil/empty to mean "no
// filtering". topK and maxCandidates default to 30 and 15 per spec §4.6
// when zero.
func New(md *marketdata.Store, inclusionList []string, topK, maxCandidates int) *Extractor {
	if topK <= 0 {
		topK = 30
	}

	if maxCandidates <= 0 {
		maxCandidates = 15
	}

	var inclusion map[string]struct{}
	if len(inclusionList) > 0 {
		inclusion = make(map[string]struct{}, len(inclusionList))
		for _, s := range inclusionList {
			inclusion[s] = struct{}{}
		}
	}

	return &Extractor{md: md, inclusion: inclusion, topK: topK, maxCand: maxCandidates}
}

// Universe returns the candidate symbol list for date: top-K by traded
// value from windowStart through windowEnd (both inclusive), filtered by the inclusion list (if
// configured) and truncated to at most maxCandidates (spec §4.6 step 1).
func (e *Extractor) Universe(date, windowStart, windowEnd string) ([]string, error) {
	ranked, err := e.md.TopKByTradedValue(date, windowStart, windowEnd, e.topK)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(ranked))

	for _, r := range ranked {
		if e.inclusion != nil {
			if _, ok := e.inclusion[r.Symbol]; !ok {
				continue
			}
		}

		symbols = append(symbols, r.Symbol)

		if len(symbols) >= e.maxCand {
			break
		}
	}

	return symbols, nil
}

// Extract computes the full feature vector for symbol on date, over the
// feature window windowStart..windowEnd (both inclusive). isFirstTradingDay gates the
// previous-day-relative family: per spec §4.6 step 3, a feature requiring
// a previous day on the first calendar date must surface an explicit
// missing-data error, never a silently substituted zero.
func (e *Extractor) Extract(symbol, date, windowStart, windowEnd string, isFirstTradingDay bool, prevDate string) (Candidate, error) {
	bars, err := e.md.OneMinuteBarsInRange(symbol, date, windowStart, windowEnd)
	if err != nil {
		return Candidate{}, err
	}

	if len(bars) == 0 {
		return Candidate{}, errors.Newf(errors.ErrCodeFeatureMissing, "no 1-minute bars for %s on %s in window %s-%s", symbol, date, windowStart, windowEnd)
	}

	vec := make([]float64, len(FieldNames))

	day1OpenToClose, day1Volume, day1Spread := day1Window(bars)
	vec[0] = day1OpenToClose
	vec[1] = day1Volume
	vec[2] = day1Spread

	volRatio, closeRatio, err := e.day2PrevDayRelative(symbol, date, prevDate, isFirstTradingDay, bars)
	if err != nil {
		return Candidate{}, err
	}

	vec[3] = volRatio
	vec[4] = closeRatio

	closes := closesOf(bars)
	vec[5] = rsi(closes, 14)
	vec[6] = movingAverage(closes, 5)

	vec[7] = ema(closes, 12) - ema(closes, 26)

	normalizeNaNInf(vec)

	return Candidate{Symbol: symbol, Vector: vec}, nil
}

// day1Window computes the intraday family: percentage move from the
// window's open to its close, total window volume, and the high/low
// spread as a percentage of the open.
func day1Window(bars []marketdata.Bar) (openToClosePct, volume, highLowSpreadPct float64) {
	open := bars[0].Open
	closeP := bars[len(bars)-1].Close

	high := bars[0].High
	low := bars[0].Low

	var vol int64

	for _, b := range bars {
		if b.High.GreaterThan(high) {
			high = b.High
		}

		if b.Low.LessThan(low) {
			low = b.Low
		}

		vol += b.Volume
	}

	openToClosePct = ratioPct(closeP, open)
	highLowSpreadPct = ratioPct(high.Sub(low), open)
	volume = float64(vol)

	return
}

// day2PrevDayRelative computes the previous-day-relative family: the
// window's traded-volume ratio and close-price ratio against the previous
// trading day's daily bar. On the first trading day there is no previous
// bar to compare against, so this surfaces ErrCodeFeatureMissing rather
// than a neutral zero (spec §8 scenario 3).
func (e *Extractor) day2PrevDayRelative(symbol, date, prevDate string, isFirstTradingDay bool, bars []marketdata.Bar) (volRatio, closeRatio float64, err error) {
	if isFirstTradingDay {
		return 0, 0, errors.Newf(errors.ErrCodeFeatureMissing, "day2_volume_ratio_vs_prevday requires a previous trading day, but %s is the first date in the calendar", date)
	}

	prevBar, err := e.md.DailyBar(symbol, prevDate)
	if err != nil {
		return 0, 0, errors.Wrapf(errors.ErrCodeFeatureMissing, err, "missing previous-day bar for %s on %s", symbol, prevDate)
	}

	var windowVolume int64
	for _, b := range bars {
		windowVolume += b.Volume
	}

	if prevBar.Volume > 0 {
		volRatio = float64(windowVolume) / float64(prevBar.Volume)
	}

	closeRatio = ratioPct(bars[len(bars)-1].Close, prevBar.Close)

	return volRatio, closeRatio, nil
}

func ratioPct(numerator, denominator decimal.Decimal) float64 {
	if denominator.IsZero() {
		return 0
	}

	f, _ := numerator.Sub(denominator).Div(denominator).Float64()

	return f * 100
}

func closesOf(bars []marketdata.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		f, _ := b.Close.Float64()
		closes[i] = f
	}

	return closes
}

// rsi is Wilder's RSI over the trailing period+1 closes, ported from the
// teacher's internal/indicator/rsi.go algorithm.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	window := closes[len(closes)-(period+1):]

	var avgGain, avgLoss float64

	for i := 1; i <= period; i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

func movingAverage(closes []float64, period int) float64 {
	if len(closes) < period {
		period = len(closes)
	}

	if period == 0 {
		return 0
	}

	window := closes[len(closes)-period:]

	var sum float64
	for _, c := range window {
		sum += c
	}

	return sum / float64(period)
}

func ema(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}

	if len(closes) < period {
		period = len(closes)
	}

	k := 2.0 / (float64(period) + 1.0)
	e := closes[0]

	for _, c := range closes[1:] {
		e = c*k + e*(1-k)
	}

	return e
}

func normalizeNaNInf(vec []float64) {
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vec[i] = 0.0
		}
	}
}

// FeatureWindow computes the inclusive start and end HHMM bounds for date: the
// configured base window shifted by TimeService's special-start offset.
func FeatureWindow(baseStart, baseEnd time.Duration, offset time.Duration) (string, string) {
	fmtHHMM := func(d time.Duration) string {
		d += offset
		total := int(d.Minutes())

		return timeOfDayHHMM(total)
	}

	return fmtHHMM(baseStart), fmtHHMM(baseEnd)
}

func timeOfDayHHMM(totalMinutes int) string {
	h := totalMinutes / 60
	m := totalMinutes % 60

	return padTwo(h) + padTwo(m)
}

func padTwo(n int) string {
	if n < 10 {
		return "0" + itoa(n)
	}

	return itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}
