package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownAddAndExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()

	until := c.Add("AAPL", 3*time.Hour, "position closed", "sync", now)
	assert.Equal(t, now.Add(3*time.Hour), until)
	assert.True(t, c.Contains("AAPL", now))
	assert.True(t, c.Contains("AAPL", now.Add(3*time.Hour-time.Second)))
	assert.False(t, c.Contains("AAPL", now.Add(3*time.Hour+time.Second)))
}

func TestCooldownExtendOnly(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()

	c.Add("AAPL", 3*time.Hour, "first", "sync", now)

	// A shorter re-add never truncates the active cooldown.
	until := c.Add("AAPL", time.Hour, "second", "engine", now)
	assert.Equal(t, now.Add(3*time.Hour), until)

	// A longer one extends it.
	until = c.Add("AAPL", 6*time.Hour, "third", "engine", now)
	assert.Equal(t, now.Add(6*time.Hour), until)
}

func TestCooldownDefaultDuration(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()

	until := c.Add("AAPL", 0, "exit", "sync", now)
	assert.Equal(t, now.Add(DefaultCooldown), until)
}

func TestCooldownActiveTickersPrunes(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()

	c.Add("AAPL", time.Hour, "a", "sync", now)
	c.Add("MSFT", 5*time.Hour, "b", "sync", now)

	active := c.ActiveTickers(now.Add(2 * time.Hour))
	assert.Equal(t, map[string]bool{"MSFT": true}, active)
	assert.False(t, c.Contains("AAPL", now))
}

func TestCooldownSnapshotRestore(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()
	c.Add("AAPL", time.Hour, "a", "sync", now)
	c.Add("MSFT", 5*time.Hour, "b", "engine", now)

	// Snapshot taken after AAPL lapses carries only MSFT.
	snap := c.Snapshot(now.Add(2 * time.Hour))
	assert.Len(t, snap, 1)

	fresh := NewCooldownManager()
	fresh.Restore(snap)
	assert.True(t, fresh.Contains("MSFT", now.Add(2*time.Hour)))
	assert.False(t, fresh.Contains("AAPL", now.Add(2*time.Hour)))
}

func TestCooldownPrune(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCooldownManager()
	c.Add("AAPL", time.Hour, "a", "sync", now)
	c.Add("MSFT", 2*time.Hour, "b", "sync", now)

	assert.Equal(t, 1, c.Prune(now.Add(90*time.Minute)))
	assert.Equal(t, 0, c.Prune(now.Add(90*time.Minute)))
}
