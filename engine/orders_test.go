package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker/sim"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

func buyRequest() OrderRequest {
	return OrderRequest{
		Ticker:     "AAPL",
		Side:       market.Buy,
		Quantity:   100,
		EntryPrice: 150,
		StopLoss:   145,
		Target:     165,
	}
}

func TestOrderRequestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*OrderRequest)
		ok     bool
	}{
		{"valid buy", func(r *OrderRequest) {}, true},
		{"valid short", func(r *OrderRequest) {
			r.Side = market.Short
			r.StopLoss = 155
			r.Target = 140
		}, true},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }, false},
		{"negative price", func(r *OrderRequest) { r.EntryPrice = -1 }, false},
		{"buy stop above entry", func(r *OrderRequest) { r.StopLoss = 151 }, false},
		{"buy target below entry", func(r *OrderRequest) { r.Target = 149 }, false},
		{"short stop below entry", func(r *OrderRequest) {
			r.Side = market.Short
			r.StopLoss = 149
			r.Target = 140
		}, false},
		{"sell cannot open", func(r *OrderRequest) { r.Side = market.Sell }, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := buyRequest()
			tc.mutate(&req)
			err := req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidOrderParams)
			}
		})
	}
}

func TestSubmitBracketTracksOpenOrders(t *testing.T) {
	t.Parallel()

	b := sim.New()
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	oid, err := m.SubmitBracket(context.Background(), buyRequest())
	require.NoError(t, err)
	require.NotEmpty(t, oid)
	assert.Equal(t, []string{oid}, m.OpenOrderIDs("AAPL"))
}

func TestSubmitBracketNotTradable(t *testing.T) {
	t.Parallel()

	b := sim.New()
	b.SetAsset(broker.Asset{Ticker: "AAPL", Tradable: false})
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	_, err := m.SubmitBracket(context.Background(), buyRequest())
	assert.ErrorIs(t, err, broker.ErrNotTradable)
	assert.Empty(t, m.OpenOrderIDs("AAPL"))
}

func TestSubmitBracketShortNeedsShortable(t *testing.T) {
	t.Parallel()

	b := sim.New()
	b.SetAsset(broker.Asset{Ticker: "AAPL", Tradable: true, Shortable: false})
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	req := buyRequest()
	req.Side = market.Short
	req.StopLoss = 155
	req.Target = 140
	_, err := m.SubmitBracket(context.Background(), req)
	assert.ErrorIs(t, err, broker.ErrNotTradable)
}

func TestAnalyzeModeEmitsDryRun(t *testing.T) {
	t.Parallel()

	emitter := events.NewEmitter()
	var dry []events.Event
	emitter.SubscribeType(events.DryRun, func(ev events.Event) { dry = append(dry, ev) })

	m := NewOrderManager(sim.New(), emitter, nil, true)

	oid, err := m.SubmitBracket(context.Background(), buyRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(oid, "dry-"))
	require.Len(t, dry, 1)
	assert.Equal(t, "AAPL", dry[0].Ticker)
	assert.Equal(t, 145.0, dry[0].Fields["stop_loss"])

	// Close is also a dry run and clears the tracked orders.
	_, err = m.ClosePosition(context.Background(), "AAPL", strategies.UrgencyNormal)
	require.NoError(t, err)
	assert.Empty(t, m.OpenOrderIDs("AAPL"))
	assert.Len(t, dry, 2)
}

func TestClosePositionCancelsOpenOrdersFirst(t *testing.T) {
	t.Parallel()

	b := sim.New()
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	oid, err := m.SubmitBracket(context.Background(), buyRequest())
	require.NoError(t, err)

	_, err = m.ClosePosition(context.Background(), "AAPL", strategies.UrgencyNormal)
	require.NoError(t, err)
	assert.Empty(t, m.OpenOrderIDs("AAPL"))

	// The entry order was canceled at the broker before the close.
	ids, err := b.OpenOrders(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotContains(t, ids, oid)
}

func TestPollClearsFilledOrders(t *testing.T) {
	t.Parallel()

	b := sim.New()
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	oid, err := m.SubmitBracket(context.Background(), buyRequest())
	require.NoError(t, err)

	updates, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, broker.OrderEventFilled, updates[0].Kind)
	assert.Equal(t, oid, updates[0].OrderID)
	assert.Empty(t, m.OpenOrderIDs("AAPL"))
}

func TestSnapshotRestoreOrders(t *testing.T) {
	t.Parallel()

	m := NewOrderManager(sim.New(), events.NewEmitter(), nil, false)
	m.Restore(map[string][]string{"AAPL": {"a1", "a2"}, "MSFT": {"m1"}})

	snap := m.Snapshot()
	assert.Equal(t, []string{"a1", "a2"}, snap["AAPL"])
	assert.Equal(t, []string{"m1"}, snap["MSFT"])

	// Snapshot is a copy, not a view.
	snap["AAPL"][0] = "mutated"
	assert.Equal(t, []string{"a1", "a2"}, m.OpenOrderIDs("AAPL"))
}

// transientBroker fails the first n calls with a retryable error.
type transientBroker struct {
	*sim.Sim
	failures int
	calls    int
}

func (b *transientBroker) SubmitBracket(ctx context.Context, order broker.BracketOrder) (string, error) {
	b.calls++
	if b.calls <= b.failures {
		return "", fmt.Errorf("flaky: %w", broker.ErrTransient)
	}
	return b.Sim.SubmitBracket(ctx, order)
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	b := &transientBroker{Sim: sim.New(), failures: 2}
	m := NewOrderManager(b, events.NewEmitter(), nil, false)
	m.maxAttempts = 3
	m.timeout = time.Second

	oid, err := m.SubmitBracket(context.Background(), buyRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, oid)
	assert.Equal(t, 3, b.calls)
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	b := &transientBroker{Sim: sim.New(), failures: 10}
	m := NewOrderManager(b, events.NewEmitter(), nil, false)
	m.maxAttempts = 3
	m.timeout = time.Second

	_, err := m.SubmitBracket(context.Background(), buyRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrTransient)
	assert.Equal(t, 3, b.calls)
}

func TestNonTransientFailureNotRetried(t *testing.T) {
	t.Parallel()

	b := sim.New()
	b.RejectNext("AAPL", "insufficient buying power")
	m := NewOrderManager(b, events.NewEmitter(), nil, false)

	_, err := m.SubmitBracket(context.Background(), buyRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient buying power")
}
