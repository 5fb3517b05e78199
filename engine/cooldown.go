package engine

import (
	"sync"
	"time"
)

// DefaultCooldown is the standard per-ticker re-entry block after an exit.
const DefaultCooldown = 3 * time.Hour

// Cooldown is a timed prohibition on new entries for a ticker.
type Cooldown struct {
	Ticker string    `json:"ticker"`
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
	Source string    `json:"source"`
}

// CooldownManager keeps at most one active cooldown per ticker. Re-adding
// only ever extends; a shorter duration never truncates an active cooldown.
type CooldownManager struct {
	mu      sync.Mutex
	entries map[string]Cooldown
}

func NewCooldownManager() *CooldownManager {
	return &CooldownManager{entries: make(map[string]Cooldown)}
}

// Add places or extends a cooldown. Returns the effective expiry.
func (c *CooldownManager) Add(ticker string, d time.Duration, reason, source string, now time.Time) time.Time {
	if d <= 0 {
		d = DefaultCooldown
	}
	until := now.Add(d)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[ticker]; ok && existing.Until.After(until) {
		return existing.Until
	}
	c.entries[ticker] = Cooldown{Ticker: ticker, Until: until, Reason: reason, Source: source}
	return until
}

// Contains reports whether an unexpired cooldown exists for ticker.
func (c *CooldownManager) Contains(ticker string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ticker]
	return ok && entry.Until.After(now)
}

// ActiveTickers returns the set of tickers currently cooling down and
// prunes expired entries on the way.
func (c *CooldownManager) ActiveTickers(now time.Time) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]bool)
	for ticker, entry := range c.entries {
		if entry.Until.After(now) {
			out[ticker] = true
		} else {
			delete(c.entries, ticker)
		}
	}
	return out
}

// Prune drops expired entries and returns how many were removed.
func (c *CooldownManager) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for ticker, entry := range c.entries {
		if !entry.Until.After(now) {
			delete(c.entries, ticker)
			removed++
		}
	}
	return removed
}

// Snapshot returns the active cooldowns for persistence.
func (c *CooldownManager) Snapshot(now time.Time) []Cooldown {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Cooldown, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.Until.After(now) {
			out = append(out, entry)
		}
	}
	return out
}

// Restore replaces the cooldown set.
func (c *CooldownManager) Restore(entries []Cooldown) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Cooldown, len(entries))
	for _, entry := range entries {
		c.entries[entry.Ticker] = entry
	}
}
