package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrTradeNotFound is returned by GetTrade for unknown ids.
var ErrTradeNotFound = errors.New("trade not found")

// Summary aggregates closed trades over a window.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	NetPnL       float64
	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64
}

// GetTrade returns a single trade record by id.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT trade_id, ticker, side, quantity, entry_price, exit_price, opened_at, closed_at, realized_pnl, strategy, reason
		FROM trades
		WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("%s: %w", tradeID, ErrTradeNotFound)
	}
	return rec, err
}

// ListTradesClosedBetween returns trades with closed_at in [start, end),
// oldest first.
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, ticker, side, quantity, entry_price, exit_price, opened_at, closed_at, realized_pnl, strategy, reason
		FROM trades
		WHERE closed_at >= ? AND closed_at < ?
		ORDER BY closed_at ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summarize aggregates trades closed in [start, end).
func (j *SQLite) Summarize(start, end time.Time) (Summary, error) {
	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	s.Trades = len(trades)
	for _, t := range trades {
		s.NetPnL += t.RealizedPnL
		if t.RealizedPnL >= 0 {
			s.Wins++
			s.GrossProfit += t.RealizedPnL
		} else {
			s.Losses++
			s.GrossLoss += -t.RealizedPnL
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s, nil
}

// CountEvents returns the number of journaled events of a type in
// [start, end).
func (j *SQLite) CountEvents(eventType string, start, end time.Time) (int, error) {
	row := j.db.QueryRow(`
		SELECT COUNT(*) FROM events
		WHERE type = ? AND time >= ? AND time < ?`, eventType, start, end)
	var n int
	err := row.Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Ticker,
		&rec.Side,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenedAt,
		&rec.ClosedAt,
		&rec.RealizedPnL,
		&rec.Strategy,
		&rec.Reason,
	)
	return rec, err
}
