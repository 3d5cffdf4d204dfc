// Package timeservice implements the calendar-aware, mode-sensitive clock
// described in spec §4.1: a monotonic stream of TimeEvents, cached "now",
// and a single wait entry point whose behavior is parameterized by mode
// rather than branched on by every caller (spec §9, "Time-mode dispatch").
package timeservice

import (
	"sync"
	"time"

	"github.com/kisquant/daytrader/internal/calendar"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

const dateLayout = "20060102"
const dateTimeLayout = "200601021504"
const timeOfDayLayout = "15:04:05"

// MarketHours holds the base (non-special-start) clock-times for a trading
// day, parsed once at construction.
type MarketHours struct {
	DataPrep    time.Duration
	MarketOpen  time.Duration
	LastUpdate  time.Duration
	MarketClose time.Duration
}

// ParseMarketHours parses the market_hours config section's HH:MM:SS
// strings into offsets from midnight.
func ParseMarketHours(dataPrep, marketOpen, lastUpdate, marketClose string) (MarketHours, error) {
	dp, err := parseTimeOfDay(dataPrep)
	if err != nil {
		return MarketHours{}, err
	}

	mo, err := parseTimeOfDay(marketOpen)
	if err != nil {
		return MarketHours{}, err
	}

	lu, err := parseTimeOfDay(lastUpdate)
	if err != nil {
		return MarketHours{}, err
	}

	mc, err := parseTimeOfDay(marketClose)
	if err != nil {
		return MarketHours{}, err
	}

	return MarketHours{DataPrep: dp, MarketOpen: mo, LastUpdate: lu, MarketClose: mc}, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	return ParseTimeOfDay(s)
}

// ParseTimeOfDay parses an HH:MM:SS clock-time string into its offset from
// midnight. Exported so callers outside this package (cmd/daytrader's
// feature-window bounds) can parse config times the same way market_hours
// does, instead of duplicating the layout.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTimeParseFailed, err, "malformed time string %q, expected HH:MM:SS", s)
	}

	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// TimeService produces the ordered TimeEvent stream and gates progress
// between events according to Mode.
type TimeService struct {
	calendar      *calendar.TradingCalendar
	hours         MarketHours
	specialOffset time.Duration
	mode          types.Mode
	cacheTTL      time.Duration
	maxSleepStep  time.Duration

	mu         sync.Mutex
	virtualNow time.Time // backtest only: the logical clock
	cachedNow  time.Time // paper/live only: memoized wall-clock sample
	cachedAt   time.Time
}

// New constructs a TimeService. start is the initial instant: for backtest
// this seeds the virtual clock, for paper/live it is typically time.Now()
// at process start. cacheTTL is the "now" memoization window (spec: "tens
// of ms" default); maxSleepStep bounds each wait_until_next_event sleep
// interval so a mid-sleep calendar change is noticed promptly.
func New(cal *calendar.TradingCalendar, hours MarketHours, specialOffsetMinutes int, mode types.Mode, start time.Time, cacheTTL, maxSleepStep time.Duration) *TimeService {
	return &TimeService{
		calendar:      cal,
		hours:         hours,
		specialOffset: time.Duration(specialOffsetMinutes) * time.Minute,
		mode:          mode,
		cacheTTL:      cacheTTL,
		maxSleepStep:  maxSleepStep,
		virtualNow:    start,
	}
}

// Now returns the current logical instant, cached for cacheTTL in
// paper/live so that all calls within one tick observe the same value.
// In backtest it returns the virtual clock directly (backtest never
// sleeps, so there is nothing to memoize against).
func (s *TimeService) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == types.ModeBacktest {
		return s.virtualNow
	}

	if s.cachedNow.IsZero() || time.Since(s.cachedAt) >= s.cacheTTL {
		s.cachedNow = time.Now()
		s.cachedAt = time.Now()
	}

	return s.cachedNow
}

func (s *TimeService) invalidateCache() {
	s.mu.Lock()
	s.cachedAt = time.Time{}
	s.mu.Unlock()
}

// IsSpecialStartDate reports whether date is a special-start date.
func (s *TimeService) IsSpecialStartDate(date string) bool {
	return s.calendar.IsSpecialStart(date)
}

func (s *TimeService) offsetFor(date string) time.Duration {
	if s.calendar.IsSpecialStart(date) {
		return s.specialOffset
	}

	return 0
}

// SpecialOffset returns the special-start shift that applies to date, zero
// for an ordinary trading day. Strategy uses this to shift entry_time and
// force_close_time the same way TimeService shifts the market-hours events.
func (s *TimeService) SpecialOffset(date string) time.Duration {
	return s.offsetFor(date)
}

// eventsForDate returns the full ordered event list for a trading date:
// DataPrep, MarketOpen, one Update per minute, MarketClose, Overnight.
// Overnight is stamped one nanosecond after MarketClose so it sorts
// strictly after it even under the "now equals a boundary" tie-break.
func (s *TimeService) eventsForDate(date string) ([]types.TimeEvent, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeTimeParseFailed, err, "malformed date %q", date)
	}

	offset := s.offsetFor(date)
	at := func(d time.Duration) time.Time { return day.Add(d + offset) }

	events := []types.TimeEvent{
		{Tag: types.EventDataPrep, At: at(s.hours.DataPrep), Date: date},
		{Tag: types.EventMarketOpen, At: at(s.hours.MarketOpen), Date: date},
	}

	for t := s.hours.MarketOpen + time.Minute; t <= s.hours.LastUpdate; t += time.Minute {
		events = append(events, types.TimeEvent{Tag: types.EventUpdate, At: at(t), Date: date})
	}

	marketClose := at(s.hours.MarketClose)
	events = append(events,
		types.TimeEvent{Tag: types.EventMarketClose, At: marketClose, Date: date},
		types.TimeEvent{Tag: types.EventOvernight, At: marketClose.Add(time.Nanosecond), Date: date},
	)

	return events, nil
}

// NextEvent computes the next event strictly after Now(), honoring the
// trading calendar: if the current date is not a trading day, the next
// event is the next trading day's DataPrep.
func (s *TimeService) NextEvent() (types.TimeEvent, error) {
	now := s.Now()
	date := now.Format(dateLayout)

	if !s.calendar.Contains(date) {
		return s.dataPrepOfNextTradingDay(date)
	}

	events, err := s.eventsForDate(date)
	if err != nil {
		return types.TimeEvent{}, err
	}

	for _, ev := range events {
		if ev.At.After(now) {
			return ev, nil
		}
	}

	return s.dataPrepOfNextTradingDay(date)
}

func (s *TimeService) dataPrepOfNextTradingDay(date string) (types.TimeEvent, error) {
	next, ok := s.calendar.NextTradingDay(date)
	if !ok {
		return types.TimeEvent{}, errors.Newf(errors.ErrCodeTimeEventExhausted, "no trading day found after %s", date)
	}

	events, err := s.eventsForDate(next)
	if err != nil {
		return types.TimeEvent{}, err
	}

	return events[0], nil
}

// WaitUntilNextEvent advances to (and returns) the next TimeEvent. In
// backtest it moves the virtual clock with no sleeping; in paper/live it
// sleeps until wall-clock reaches the event, re-checking the calendar on
// every wake so a day that turned non-trading mid-sleep is skipped.
func (s *TimeService) WaitUntilNextEvent() (types.TimeEvent, error) {
	ev, err := s.NextEvent()
	if err != nil {
		return ev, err
	}

	if s.mode == types.ModeBacktest {
		s.mu.Lock()
		s.virtualNow = ev.At
		s.mu.Unlock()

		return ev, nil
	}

	for {
		s.invalidateCache()

		remaining := ev.At.Sub(s.Now())
		if remaining <= 0 {
			break
		}

		step := remaining
		if step > s.maxSleepStep {
			step = s.maxSleepStep
		}

		time.Sleep(step)

		recomputed, err := s.NextEvent()
		if err != nil {
			return recomputed, err
		}

		ev = recomputed
	}

	s.invalidateCache()

	return ev, nil
}

// NextTradingDay delegates to the underlying calendar.
func (s *TimeService) NextTradingDay(date string) (string, bool) {
	return s.calendar.NextTradingDay(date)
}

// PreviousTradingDay delegates to the underlying calendar.
func (s *TimeService) PreviousTradingDay(date string) (string, bool) {
	return s.calendar.PreviousTradingDay(date)
}

// AddMinutes returns t shifted by n minutes (n may be negative).
func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// DayDiff returns the number of calendar days between two YYYYMMDD dates
// (b - a), computed by parsing both as UTC midnight instants.
func DayDiff(a, b string) (int, error) {
	ta, err := time.Parse(dateLayout, a)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTimeParseFailed, err, "malformed date %q", a)
	}

	tb, err := time.Parse(dateLayout, b)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTimeParseFailed, err, "malformed date %q", b)
	}

	return int(tb.Sub(ta).Hours() / 24), nil
}

// FormatDate renders t in canonical YYYYMMDD form.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatDateTime renders t in canonical YYYYMMDDHHMM form.
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}
