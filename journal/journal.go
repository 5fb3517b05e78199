// Package journal persists the engine's trading record for later analysis:
// every emitted event and every closed trade. The SQLite backend is the
// default; the CSV backend suits one-off analyze runs.
package journal

import (
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
)

// TradeRecord is one completed round trip.
type TradeRecord struct {
	TradeID     string
	Ticker      string
	Side        string
	Quantity    int
	EntryPrice  float64
	ExitPrice   float64
	OpenedAt    time.Time
	ClosedAt    time.Time
	RealizedPnL float64
	Strategy    string
	Reason      string
}

// Journal records engine activity.
type Journal interface {
	RecordEvent(events.Event) error
	RecordTrade(TradeRecord) error
	Close() error
}

// Handler adapts a Journal into an event handler. Record failures are
// swallowed; journaling must never stall the engine loop.
func Handler(j Journal) events.Handler {
	return func(ev events.Event) {
		_ = j.RecordEvent(ev)
	}
}
