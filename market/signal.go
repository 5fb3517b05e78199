package market

import (
	"fmt"
	"regexp"
	"time"
)

var tickerRE = regexp.MustCompile(`^[A-Z]{1,5}$`)

// AgentRecommendation is a fully specified setup attached to a proposal by
// an upstream analyst. Validate-mode strategies use these values verbatim.
type AgentRecommendation struct {
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	Target     float64 `json:"target"`
	Quantity   int     `json:"quantity"`
	TradeType  Side    `json:"trade_type"`
}

// PendingSignal is a trade proposal waiting in the signal queue.
// Lower priority values are served first.
type PendingSignal struct {
	Ticker         string               `json:"ticker"`
	Action         Action               `json:"action"`
	Priority       int                  `json:"priority"`
	Confidence     float64              `json:"confidence"`
	Source         string               `json:"source"`
	CreatedAt      time.Time            `json:"created_at"`
	ExpiresAt      time.Time            `json:"expires_at,omitempty"`
	Recommendation *AgentRecommendation `json:"agent_recommendation,omitempty"`
}

// Validate checks the structural invariants of a proposal.
func (s *PendingSignal) Validate() error {
	if !tickerRE.MatchString(s.Ticker) {
		return fmt.Errorf("ticker %q: must be 1-5 uppercase letters", s.Ticker)
	}
	switch s.Action {
	case Buy, Sell, Short, Cover:
	default:
		return fmt.Errorf("ticker %s: unknown action %q", s.Ticker, s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("ticker %s: confidence %.1f out of range", s.Ticker, s.Confidence)
	}
	if !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(s.CreatedAt) {
		return fmt.Errorf("ticker %s: expires_at must be after created_at", s.Ticker)
	}
	return nil
}

// Expired reports whether the signal's TTL has lapsed.
func (s *PendingSignal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
