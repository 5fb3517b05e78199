package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

func proposal(ticker string, priority int, created time.Time) market.PendingSignal {
	return market.PendingSignal{
		Ticker:     ticker,
		Action:     market.Buy,
		Priority:   priority,
		Confidence: 80,
		Source:     "test",
		CreatedAt:  created,
	}
}

func TestQueueDuplicateTickerRejected(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	require.NoError(t, q.Add(proposal("AAPL", 50, now), now))
	err := q.Add(proposal("AAPL", 10, now), now)
	assert.ErrorIs(t, err, ErrDuplicateTicker)
	assert.Equal(t, 1, q.Size())
}

func TestQueuePopOrder(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	// B and D share a priority; D arrived first and must pop first.
	require.NoError(t, q.Add(proposal("AAAA", 70, now), now))
	require.NoError(t, q.Add(proposal("BBBB", 20, now.Add(time.Minute)), now))
	require.NoError(t, q.Add(proposal("CCCC", 40, now), now))
	require.NoError(t, q.Add(proposal("DDDD", 20, now), now))

	ready, expired := q.PopReady(now.Add(2*time.Minute), 10)
	require.Empty(t, expired)

	var order []string
	for _, sig := range ready {
		order = append(order, sig.Ticker)
	}
	assert.Equal(t, []string{"DDDD", "BBBB", "CCCC", "AAAA"}, order)
	assert.Equal(t, 0, q.Size())
}

func TestQueueCapacity(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(2, time.Hour)

	require.NoError(t, q.Add(proposal("AAPL", 1, now), now))
	require.NoError(t, q.Add(proposal("MSFT", 2, now), now))
	err := q.Add(proposal("NVDA", 3, now), now)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Size())
}

func TestQueueDefaultTTLAssigned(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, 4*time.Hour)

	require.NoError(t, q.Add(proposal("AAPL", 1, now), now))
	sig, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, now.Add(4*time.Hour), sig.ExpiresAt)
}

func TestQueueRejectsAlreadyExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	sig := proposal("AAPL", 1, now.Add(-2*time.Hour))
	sig.ExpiresAt = now.Add(-time.Hour)
	assert.ErrorIs(t, q.Add(sig, now), ErrSignalExpired)
}

func TestQueuePopSkipsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	stale := proposal("AAPL", 1, now)
	stale.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, q.Add(stale, now))
	require.NoError(t, q.Add(proposal("MSFT", 2, now), now))

	ready, expired := q.PopReady(now.Add(10*time.Minute), 10)
	require.Len(t, ready, 1)
	assert.Equal(t, "MSFT", ready[0].Ticker)
	require.Len(t, expired, 1)
	assert.Equal(t, "AAPL", expired[0].Ticker)
}

func TestQueuePruneExpired(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	stale := proposal("AAPL", 1, now)
	stale.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, q.Add(stale, now))
	require.NoError(t, q.Add(proposal("MSFT", 2, now), now))

	expired := q.PruneExpired(now.Add(time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, "AAPL", expired[0].Ticker)
	assert.Equal(t, 1, q.Size())
	assert.False(t, q.Contains("AAPL"))

	// Ticker is free to requeue after the prune.
	assert.NoError(t, q.Add(proposal("AAPL", 1, now.Add(time.Hour)), now.Add(time.Hour)))
}

func TestQueueRemove(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)

	require.NoError(t, q.Add(proposal("AAPL", 1, now), now))
	assert.True(t, q.Remove("AAPL"))
	assert.False(t, q.Remove("AAPL"))
	assert.Equal(t, 0, q.Size())
}

func TestQueueSnapshotRestore(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	q := NewSignalQueue(10, time.Hour)
	require.NoError(t, q.Add(proposal("AAPL", 30, now), now))
	require.NoError(t, q.Add(proposal("MSFT", 10, now), now))

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "MSFT", snap[0].Ticker)
	assert.Equal(t, 2, q.Size())

	fresh := NewSignalQueue(10, time.Hour)
	fresh.Restore(snap)
	assert.Equal(t, 2, fresh.Size())
	assert.True(t, fresh.Contains("AAPL"))

	// Restore re-applies the capacity bound.
	tiny := NewSignalQueue(1, time.Hour)
	tiny.Restore(snap)
	assert.Equal(t, 1, tiny.Size())
	assert.True(t, tiny.Contains("MSFT"))
}
