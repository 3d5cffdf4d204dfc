// Package store owns the single local relational database: the `trading`
// table of realized trades and the `overview` table of per-day aggregates
// (spec §4.8). Monetary columns are persisted as canonical decimal strings
// rather than floats so a save-then-load round trip is exact.
package store

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Store wraps the trading-store DuckDB handle.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// Open opens (and creates, if absent) the trading store database at path
// and ensures its tables exist. path may be ":memory:" for tests.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to open trading store at %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to connect to trading store at %s", path)
	}

	s := &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trading (
			date TEXT,
			time TEXT,
			symbol TEXT,
			side TEXT,
			quantity BIGINT,
			price TEXT,
			real_price TEXT,
			fee TEXT,
			avg_price_at_sell TEXT,
			roi_pct TEXT,
			note TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to create trading table")
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS overview (
			date TEXT PRIMARY KEY,
			open TEXT,
			high TEXT,
			low TEXT,
			close TEXT,
			volume TEXT,
			fees TEXT,
			roi TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to create overview table")
	}

	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func decStr(d decimal.Decimal) string { return d.String() }

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrCodeQueryFailed, err, "malformed decimal %q read from store", s)
	}

	return d, nil
}

// SaveTrade inserts a realized Trade row. avgPrice is the pre-sell average
// cost basis, supplied by the caller (Broker) to avoid a post-sell lookup
// against an emptied position.
func (s *Store) SaveTrade(trade types.Trade, avgPrice decimal.Decimal) error {
	roiPct := ""
	if trade.Side == types.SideSell {
		roiPct = trade.RoiPct.String()
	}

	_, err := s.sq.
		Insert("trading").
		Columns("date", "time", "symbol", "side", "quantity", "price", "real_price", "fee", "avg_price_at_sell", "roi_pct", "note").
		Values(trade.Date, trade.Time, trade.Symbol, string(trade.Side), trade.Quantity,
			decStr(trade.Price), decStr(trade.RealPrice), decStr(trade.Fee), decStr(avgPrice), roiPct, trade.Note).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to insert trade")
	}

	return nil
}

// TradesForDate returns all trading rows for date, ordered by time.
func (s *Store) TradesForDate(date string) ([]types.Trade, error) {
	rows, err := s.sq.
		Select("date", "time", "symbol", "side", "quantity", "price", "real_price", "fee", "avg_price_at_sell", "roi_pct", "note").
		From("trading").
		Where(squirrel.Eq{"date": date}).
		OrderBy("time ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to query trades for date")
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var (
			t          types.Trade
			side       string
			avgPriceStr string
			priceStr, realPriceStr, feeStr, roiPctStr string
		)

		if err := rows.Scan(&t.Date, &t.Time, &t.Symbol, &side, &t.Quantity, &priceStr, &realPriceStr, &feeStr, &avgPriceStr, &roiPctStr, &t.Note); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to scan trade row")
		}

		t.Side = types.Side(side)

		if t.Price, err = parseDec(priceStr); err != nil {
			return nil, err
		}

		if t.RealPrice, err = parseDec(realPriceStr); err != nil {
			return nil, err
		}

		if t.Fee, err = parseDec(feeStr); err != nil {
			return nil, err
		}

		if avgPriceStr != "" {
			if t.AvgPriceAtSell, err = parseDec(avgPriceStr); err != nil {
				return nil, err
			}
		}

		if roiPctStr != "" {
			if t.RoiPct, err = parseDec(roiPctStr); err != nil {
				return nil, err
			}
		}

		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "error iterating trades")
	}

	return trades, nil
}

// InsertOverview opens the day's overview row, capturing open exactly once.
func (s *Store) InsertOverview(date string, open decimal.Decimal) error {
	openStr := decStr(open)

	_, err := s.sq.
		Insert("overview").
		Columns("date", "open", "high", "low", "close", "volume", "fees", "roi").
		Values(date, openStr, openStr, openStr, openStr, "0", "0", "0").
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to insert overview")
	}

	return nil
}

// UpdateOverview folds currentTotalAssets into the day's running high/low/close.
func (s *Store) UpdateOverview(date string, currentTotalAssets decimal.Decimal) error {
	row := s.sq.Select("high", "low").From("overview").Where(squirrel.Eq{"date": date}).RunWith(s.db).QueryRow()

	var highStr, lowStr string
	if err := row.Scan(&highStr, &lowStr); err != nil {
		if err == sql.ErrNoRows {
			return errors.Newf(errors.ErrCodeDataNotFound, "no overview row for date %s", date)
		}

		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to read overview for update")
	}

	high, err := parseDec(highStr)
	if err != nil {
		return err
	}

	low, err := parseDec(lowStr)
	if err != nil {
		return err
	}

	if currentTotalAssets.GreaterThan(high) {
		high = currentTotalAssets
	}

	if currentTotalAssets.LessThan(low) {
		low = currentTotalAssets
	}

	_, err = s.sq.
		Update("overview").
		Set("high", decStr(high)).
		Set("low", decStr(low)).
		Set("close", decStr(currentTotalAssets)).
		Where(squirrel.Eq{"date": date}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to update overview")
	}

	return nil
}

// FinishOverview closes out date's overview row: close keeps the value of
// the last UpdateOverview, volume and fees are summed from the day's
// trading rows (both zero for a zero-trade day), and roi = close/open - 1.
func (s *Store) FinishOverview(date string) error {
	trades, err := s.TradesForDate(date)
	if err != nil {
		return err
	}

	volume := decimal.Zero
	fees := decimal.Zero

	for _, t := range trades {
		volume = volume.Add(t.Notional())
		fees = fees.Add(t.Fee)
	}

	row := s.sq.Select("open", "close").From("overview").Where(squirrel.Eq{"date": date}).RunWith(s.db).QueryRow()

	var openStr, closeStr string
	if err := row.Scan(&openStr, &closeStr); err != nil {
		if err == sql.ErrNoRows {
			return errors.Newf(errors.ErrCodeDataNotFound, "no overview row for date %s", date)
		}

		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to read overview for finish")
	}

	open, err := parseDec(openStr)
	if err != nil {
		return err
	}

	closeVal, err := parseDec(closeStr)
	if err != nil {
		return err
	}

	roi := decimal.Zero
	if !open.IsZero() {
		roi = closeVal.Div(open).Sub(decimal.NewFromInt(1))
	}

	_, err = s.sq.
		Update("overview").
		Set("volume", decStr(volume)).
		Set("fees", decStr(fees)).
		Set("roi", decStr(roi)).
		Where(squirrel.Eq{"date": date}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to finish overview")
	}

	return nil
}

// GetOverview reads the overview row for date.
func (s *Store) GetOverview(date string) (types.Overview, error) {
	row := s.sq.
		Select("date", "open", "high", "low", "close", "volume", "fees", "roi").
		From("overview").
		Where(squirrel.Eq{"date": date}).
		RunWith(s.db).
		QueryRow()

	var (
		o                                                  types.Overview
		openStr, highStr, lowStr, closeStr, volStr, feeStr, roiStr string
	)

	if err := row.Scan(&o.Date, &openStr, &highStr, &lowStr, &closeStr, &volStr, &feeStr, &roiStr); err != nil {
		if err == sql.ErrNoRows {
			return types.Overview{}, errors.Newf(errors.ErrCodeDataNotFound, "no overview row for date %s", date)
		}

		return types.Overview{}, errors.Wrap(errors.ErrCodeQueryFailed, err, "failed to read overview")
	}

	var err error

	if o.Open, err = parseDec(openStr); err != nil {
		return types.Overview{}, err
	}

	if o.High, err = parseDec(highStr); err != nil {
		return types.Overview{}, err
	}

	if o.Low, err = parseDec(lowStr); err != nil {
		return types.Overview{}, err
	}

	if o.Close, err = parseDec(closeStr); err != nil {
		return types.Overview{}, err
	}

	if o.Volume, err = parseDec(volStr); err != nil {
		return types.Overview{}, err
	}

	if o.Fees, err = parseDec(feeStr); err != nil {
		return types.Overview{}, err
	}

	if o.Roi, err = parseDec(roiStr); err != nil {
		return types.Overview{}, err
	}

	return o, nil
}

// ResetForNewDay clears any per-day in-memory cache the Store keeps. The
// Store itself holds no per-day cache beyond the database rows, so this is
// a no-op retained to satisfy the Runner's fixed per-day reset order
// (Strategy, Broker queue, Store last) described in spec §9.
func (s *Store) ResetForNewDay(date string) error {
	_ = date

	return nil
}
