// Package events defines the typed event taxonomy emitted by the execution
// engine and a small handler registry for delivering them to sinks.
package events

import "time"

// Type identifies what happened.
type Type string

const (
	ScanComplete      Type = "scan_complete"
	SignalAccepted    Type = "signal_accepted"
	SignalRejected    Type = "signal_rejected"
	SignalExpired     Type = "signal_expired"
	EntryTriggered    Type = "entry_triggered"
	ExitTriggered     Type = "exit_triggered"
	OrderFilled       Type = "order_filled"
	OrderRejected     Type = "order_rejected"
	OrderCanceled     Type = "order_canceled"
	PositionOpened    Type = "position_opened"
	PositionClosed    Type = "position_closed"
	CycleComplete     Type = "cycle_complete"
	SyncFailed        Type = "sync_failed"
	PersistenceFailed Type = "persistence_failed"
	CapacityReached   Type = "capacity_reached"
	DryRun            Type = "dry_run"
	StrategyError     Type = "strategy_error"
	InternalError     Type = "internal_error"
)

// Event is a single occurrence with a UTC timestamp and structured fields.
// Only the fields relevant to the event type are populated.
type Event struct {
	Type      Type           `json:"type"`
	Time      time.Time      `json:"time"`
	Ticker    string         `json:"ticker,omitempty"`
	Strategy  string         `json:"strategy,omitempty"`
	OrderID   string         `json:"order_id,omitempty"`
	Side      string         `json:"side,omitempty"`
	Quantity  int            `json:"quantity,omitempty"`
	Price     float64        `json:"price,omitempty"`
	PnL       float64        `json:"pnl,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Urgency   string         `json:"urgency,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}
