// Package calendar loads the trading-day calendar and the special-start
// date set used by TimeService to schedule events.
package calendar

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/kisquant/daytrader/pkg/errors"
)

const dateLayout = "20060102"

// TradingCalendar answers calendar questions in O(log n) via binary search
// over a sorted slice, and membership in O(1) via a set.
type TradingCalendar struct {
	dates   []string // sorted ascending, YYYYMMDD
	dateSet map[string]struct{}
	special map[string]struct{}
}

// Load reads the trading-date file (one YYYYMMDD per line) and, if
// specialStartPath is non-empty, the special-start date file in the same
// format. A missing or malformed calendar file is fatal, per spec §1/§7.
func Load(tradingDatesPath, specialStartPath string) (*TradingCalendar, error) {
	dates, err := readDateFile(tradingDatesPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCalendarMissing, err, "failed to load trading calendar from %s", tradingDatesPath)
	}

	if len(dates) == 0 {
		return nil, errors.Newf(errors.ErrCodeCalendarMalformed, "trading calendar file %s contains no dates", tradingDatesPath)
	}

	sort.Strings(dates)

	dateSet := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		dateSet[d] = struct{}{}
	}

	special := make(map[string]struct{})

	if specialStartPath != "" {
		specialDates, err := readDateFile(specialStartPath)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeCalendarMissing, err, "failed to load special-start dates from %s", specialStartPath)
		}

		for _, d := range specialDates {
			special[d] = struct{}{}
		}
	}

	return &TradingCalendar{dates: dates, dateSet: dateSet, special: special}, nil
}

func readDateFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var dates []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if len(line) != len(dateLayout) {
			return nil, errors.Newf(errors.ErrCodeCalendarMalformed, "malformed date %q in %s, expected YYYYMMDD", line, path)
		}

		dates = append(dates, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return dates, nil
}

// Contains reports whether date is a trading day.
func (c *TradingCalendar) Contains(date string) bool {
	_, ok := c.dateSet[date]

	return ok
}

// IsSpecialStart reports whether date is in the special-start set.
func (c *TradingCalendar) IsSpecialStart(date string) bool {
	_, ok := c.special[date]

	return ok
}

// NextTradingDay returns the earliest calendar date strictly after date.
// Returns "" and false if date is at or after the end of the calendar.
func (c *TradingCalendar) NextTradingDay(date string) (string, bool) {
	idx := sort.SearchStrings(c.dates, date)

	// idx points at date itself (if present) or the first date greater
	// than it; either way the next trading day is one slot further when
	// date is present, or exactly idx when it is not.
	if idx < len(c.dates) && c.dates[idx] == date {
		idx++
	}

	if idx >= len(c.dates) {
		return "", false
	}

	return c.dates[idx], true
}

// PreviousTradingDay returns the latest calendar date strictly before date.
// Returns "" and false if date is at or before the start of the calendar.
func (c *TradingCalendar) PreviousTradingDay(date string) (string, bool) {
	idx := sort.SearchStrings(c.dates, date)
	if idx == 0 {
		return "", false
	}

	return c.dates[idx-1], true
}

// FirstTradingDay returns the earliest date in the calendar.
func (c *TradingCalendar) FirstTradingDay() (string, bool) {
	if len(c.dates) == 0 {
		return "", false
	}

	return c.dates[0], true
}
