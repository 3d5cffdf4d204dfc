package types

import "time"

// EventTag names the kind of a scheduled TimeEvent.
type EventTag string

const (
	EventDataPrep    EventTag = "data_prep"
	EventMarketOpen  EventTag = "market_open"
	EventUpdate      EventTag = "update"
	EventMarketClose EventTag = "market_close"
	EventOvernight   EventTag = "overnight"
)

// TimeEvent is a scheduled moment in the trading day. DataPrep precedes
// MarketOpen; Update fires every minute between MarketOpen and
// MarketClose; Overnight fires once after MarketClose and advances the
// clock to the next trading day's DataPrep.
type TimeEvent struct {
	Tag  EventTag
	At   time.Time
	Date string // YYYYMMDD, the trading day this event belongs to
}
