// Package marketdata is the read/write layer over the three bar databases
// (1-minute, 5-minute, daily) that Features and SimBroker query, and that
// cmd/ingest populates. Grounded on the teacher's polygon.io downloader
// (pkg/marketdata/provider/polygon.go) for the ingestion shape and on
// internal/backtest/engine/engine_v1/state.go for the DuckDB+squirrel
// query idiom.
package marketdata

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/pkg/errors"
)

// Bar is one OHLCV observation for a symbol at a timestamp.
type Bar struct {
	Symbol string
	Date   string // YYYYMMDD
	Time   string // HHMM, empty for daily bars
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Store wraps the three bar databases behind one query surface.
type Store struct {
	oneMinute  *sql.DB
	fiveMinute *sql.DB
	daily      *sql.DB
	sq         squirrel.StatementBuilderType
}

const barSchema = `
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT,
		date TEXT,
		time TEXT,
		open DOUBLE,
		high DOUBLE,
		low DOUBLE,
		close DOUBLE,
		volume BIGINT
	)
`

func openBarDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to open bar database at %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to connect to bar database at %s", path)
	}

	if _, err := db.Exec(barSchema); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to create bars table")
	}

	return db, nil
}

// Open opens the three bar databases. Paths may be ":memory:" for tests.
func Open(oneMinutePath, fiveMinutePath, dailyPath string) (*Store, error) {
	oneMin, err := openBarDB(oneMinutePath)
	if err != nil {
		return nil, err
	}

	fiveMin, err := openBarDB(fiveMinutePath)
	if err != nil {
		oneMin.Close()

		return nil, err
	}

	daily, err := openBarDB(dailyPath)
	if err != nil {
		oneMin.Close()
		fiveMin.Close()

		return nil, err
	}

	return &Store{
		oneMinute:  oneMin,
		fiveMinute: fiveMin,
		daily:      daily,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Close closes all three database handles.
func (s *Store) Close() error {
	var firstErr error

	for _, db := range []*sql.DB{s.oneMinute, s.fiveMinute, s.daily} {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func scanBar(row interface{ Scan(...any) error }) (Bar, error) {
	var (
		b                          Bar
		openF, highF, lowF, closeF float64
	)

	if err := row.Scan(&b.Symbol, &b.Date, &b.Time, &openF, &highF, &lowF, &closeF, &b.Volume); err != nil {
		return Bar{}, err
	}

	b.Open = decimal.NewFromFloat(openF)
	b.High = decimal.NewFromFloat(highF)
	b.Low = decimal.NewFromFloat(lowF)
	b.Close = decimal.NewFromFloat(closeF)

	return b, nil
}

// InsertOneMinuteBar writes a single minute bar, used by the ingestion CLI.
func (s *Store) InsertOneMinuteBar(b Bar) error {
	return insertBar(s.oneMinute, s.sq, b)
}

// InsertFiveMinuteBar writes a single five-minute bar.
func (s *Store) InsertFiveMinuteBar(b Bar) error {
	return insertBar(s.fiveMinute, s.sq, b)
}

// InsertDailyBar writes a single daily bar (Time is ignored/empty).
func (s *Store) InsertDailyBar(b Bar) error {
	return insertBar(s.daily, s.sq, b)
}

func insertBar(db *sql.DB, sq squirrel.StatementBuilderType, b Bar) error {
	openF, _ := b.Open.Float64()
	highF, _ := b.High.Float64()
	lowF, _ := b.Low.Float64()
	closeF, _ := b.Close.Float64()

	_, err := sq.
		Insert("bars").
		Columns("symbol", "date", "time", "open", "high", "low", "close", "volume").
		Values(b.Symbol, b.Date, b.Time, openF, highF, lowF, closeF, b.Volume).
		RunWith(db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to insert bar")
	}

	return nil
}

// OneMinuteBar returns the bar for symbol at date/time, or a data-not-found
// error if absent — SimBroker and Features never silently substitute a
// missing bar.
func (s *Store) OneMinuteBar(symbol, date, time string) (Bar, error) {
	row := s.sq.
		Select("symbol", "date", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "date": date, "time": time}).
		RunWith(s.oneMinute).
		QueryRow()

	b, err := scanBar(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Bar{}, errors.Newf(errors.ErrCodeNoDataFound, "no 1-minute bar for %s at %s %s", symbol, date, time)
		}

		return Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to query 1-minute bar")
	}

	return b, nil
}

// DailyBar returns the daily bar for symbol on date.
func (s *Store) DailyBar(symbol, date string) (Bar, error) {
	row := s.sq.
		Select("symbol", "date", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "date": date}).
		RunWith(s.daily).
		QueryRow()

	b, err := scanBar(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Bar{}, errors.Newf(errors.ErrCodeNoDataFound, "no daily bar for %s on %s", symbol, date)
		}

		return Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to query daily bar")
	}

	return b, nil
}

// FiveMinuteBarsInRange returns 5-minute bars for symbol on date between
// [fromTime, toTime] inclusive, ordered by time.
func (s *Store) FiveMinuteBarsInRange(symbol, date, fromTime, toTime string) ([]Bar, error) {
	rows, err := s.sq.
		Select("symbol", "date", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "date": date}).
		Where(squirrel.GtOrEq{"time": fromTime}).
		Where(squirrel.LtOrEq{"time": toTime}).
		OrderBy("time ASC").
		RunWith(s.fiveMinute).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to query 5-minute bars")
	}
	defer rows.Close()

	return scanBars(rows)
}

// OneMinuteBarsInRange returns 1-minute bars for symbol on date between
// [fromTime, toTime] inclusive, ordered by time.
func (s *Store) OneMinuteBarsInRange(symbol, date, fromTime, toTime string) ([]Bar, error) {
	rows, err := s.sq.
		Select("symbol", "date", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "date": date}).
		Where(squirrel.GtOrEq{"time": fromTime}).
		Where(squirrel.LtOrEq{"time": toTime}).
		OrderBy("time ASC").
		RunWith(s.oneMinute).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to query 1-minute bars")
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows *sql.Rows) ([]Bar, error) {
	var bars []Bar

	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to scan bar")
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "error iterating bars")
	}

	return bars, nil
}

// TradedValue is one symbol's aggregated traded value over a window.
type TradedValue struct {
	Symbol string
	Value  decimal.Decimal
}

// TopKByTradedValue returns the top-k symbols by Σ close*volume over 1-minute
// bars on date within [fromTime, toTime], ranked descending.
func (s *Store) TopKByTradedValue(date, fromTime, toTime string, k int) ([]TradedValue, error) {
	rows, err := s.oneMinute.Query(`
		SELECT symbol, SUM(close * volume) as traded_value
		FROM bars
		WHERE date = ? AND time >= ? AND time <= ?
		GROUP BY symbol
		ORDER BY traded_value DESC
		LIMIT ?
	`, date, fromTime, toTime, k)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to rank traded value")
	}
	defer rows.Close()

	var out []TradedValue

	for rows.Next() {
		var (
			symbol string
			value  float64
		)

		if err := rows.Scan(&symbol, &value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to scan traded value row")
		}

		out = append(out, TradedValue{Symbol: symbol, Value: decimal.NewFromFloat(value)})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "error iterating traded value rows")
	}

	return out, nil
}
