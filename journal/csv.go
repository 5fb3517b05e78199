package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
)

// CSV journals trades and events to two csv files. Rows are flushed as they
// arrive so a killed process loses nothing.
type CSV struct {
	trades *csv.Writer
	evts   *csv.Writer
	tf, ef *os.File
}

var _ Journal = (*CSV)(nil)

func NewCSV(tradesPath, eventsPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, fmt.Errorf("create trades csv: %w", err)
	}
	ef, err := os.Create(eventsPath)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("create events csv: %w", err)
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	tw.Write([]string{"trade_id", "ticker", "side", "quantity", "entry_price", "exit_price", "opened_at", "closed_at", "realized_pnl", "strategy", "reason"})
	ew.Write([]string{"time", "type", "ticker", "strategy", "order_id", "reason"})
	tw.Flush()
	ew.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{trades: tw, evts: ew, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	j.trades.Write([]string{
		t.TradeID,
		t.Ticker,
		t.Side,
		strconv.Itoa(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenedAt.Format(time.RFC3339),
		t.ClosedAt.Format(time.RFC3339),
		f(t.RealizedPnL),
		t.Strategy,
		t.Reason,
	})
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEvent(ev events.Event) error {
	j.evts.Write([]string{
		ev.Time.Format(time.RFC3339),
		string(ev.Type),
		ev.Ticker,
		ev.Strategy,
		ev.OrderID,
		ev.Reason,
	})
	j.evts.Flush()
	return j.evts.Error()
}

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.evts.Flush()
	if err := j.evts.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
