package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
)

// SQLite journals to a local sqlite database.
type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, ticker, side, quantity, entry_price, exit_price, opened_at, closed_at, realized_pnl, strategy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Ticker, t.Side, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenedAt, t.ClosedAt, t.RealizedPnL, t.Strategy, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordEvent(ev events.Event) error {
	var payload []byte
	if len(ev.Fields) > 0 {
		payload, _ = json.Marshal(ev.Fields)
	}
	_, err := j.db.Exec(`
		INSERT INTO events (time, type, ticker, strategy, order_id, reason, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Time, string(ev.Type), ev.Ticker, ev.Strategy, ev.OrderID, ev.Reason, string(payload),
	)
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.Type, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
