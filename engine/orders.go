package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/id"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

// ErrInvalidOrderParams rejects structurally invalid order requests before
// they reach the broker.
var ErrInvalidOrderParams = errors.New("invalid order params")

const (
	// DefaultBrokerTimeout bounds each broker call.
	DefaultBrokerTimeout = 30 * time.Second

	// DefaultMaxAttempts bounds retries of transient broker failures.
	DefaultMaxAttempts = 3

	// retryBase is the first backoff step; it doubles per attempt.
	retryBase = 500 * time.Millisecond

	// cancelConfirmTimeout bounds the cancel-before-close step.
	cancelConfirmTimeout = 10 * time.Second
)

// OrderRequest is a validated bracket submission.
type OrderRequest struct {
	Ticker     string
	Side       market.Action
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	Target     float64
}

// Validate enforces the bracket geometry: for buys the stop sits below the
// entry and the target above; shorts are mirrored.
func (r OrderRequest) Validate() error {
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidOrderParams, r.Quantity)
	}
	if r.EntryPrice <= 0 || r.StopLoss <= 0 || r.Target <= 0 {
		return fmt.Errorf("%w: prices must be positive", ErrInvalidOrderParams)
	}
	switch r.Side {
	case market.Buy:
		if !(r.StopLoss < r.EntryPrice && r.EntryPrice < r.Target) {
			return fmt.Errorf("%w: buy requires stop < entry < target (%.2f, %.2f, %.2f)",
				ErrInvalidOrderParams, r.StopLoss, r.EntryPrice, r.Target)
		}
	case market.Short:
		if !(r.Target < r.EntryPrice && r.EntryPrice < r.StopLoss) {
			return fmt.Errorf("%w: short requires target < entry < stop (%.2f, %.2f, %.2f)",
				ErrInvalidOrderParams, r.Target, r.EntryPrice, r.StopLoss)
		}
	default:
		return fmt.Errorf("%w: side %q cannot open a bracket", ErrInvalidOrderParams, r.Side)
	}
	return nil
}

// OrderManager drives orders at the broker: bracket submission with bounded
// retries, cancel-then-close, and order update polling. In analyze mode
// submissions are replaced by dry_run events and synthetic order ids.
type OrderManager struct {
	broker  broker.Broker
	emitter *events.Emitter
	log     *zap.Logger

	analyze     bool
	timeout     time.Duration
	maxAttempts int

	// openOrders maps ticker to outstanding order ids; persisted across
	// restarts.
	openOrders map[string][]string
	lastPoll   time.Time
}

func NewOrderManager(b broker.Broker, emitter *events.Emitter, log *zap.Logger, analyze bool) *OrderManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderManager{
		broker:      b,
		emitter:     emitter,
		log:         log,
		analyze:     analyze,
		timeout:     DefaultBrokerTimeout,
		maxAttempts: DefaultMaxAttempts,
		openOrders:  make(map[string][]string),
	}
}

// SetAnalyzeMode toggles dry-run behavior.
func (m *OrderManager) SetAnalyzeMode(on bool) { m.analyze = on }

// AnalyzeMode reports whether submissions are dry runs.
func (m *OrderManager) AnalyzeMode() bool { return m.analyze }

// SubmitBracket validates and submits a bracket order, retrying transient
// failures with exponential backoff. It returns the broker order id.
func (m *OrderManager) SubmitBracket(ctx context.Context, req OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	if m.analyze {
		oid := "dry-" + id.New()
		m.emitter.Emit(events.Event{
			Type:     events.DryRun,
			Ticker:   req.Ticker,
			OrderID:  oid,
			Side:     string(req.Side),
			Quantity: req.Quantity,
			Price:    req.EntryPrice,
			Reason:   "would submit bracket order",
			Fields:   map[string]any{"stop_loss": req.StopLoss, "target": req.Target},
		})
		m.openOrders[req.Ticker] = append(m.openOrders[req.Ticker], oid)
		return oid, nil
	}

	timeout, attempts := m.callConfig()
	asset, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) (broker.Asset, error) {
		return m.broker.Asset(c, req.Ticker)
	})
	if err != nil {
		return "", fmt.Errorf("validate asset %s: %w", req.Ticker, err)
	}
	if !asset.Tradable {
		return "", fmt.Errorf("%s: %w", req.Ticker, broker.ErrNotTradable)
	}
	if req.Side == market.Short && !asset.Shortable {
		return "", fmt.Errorf("%s not shortable: %w", req.Ticker, broker.ErrNotTradable)
	}

	order := broker.BracketOrder{
		ClientID:   id.Client(req.Ticker),
		Ticker:     req.Ticker,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.EntryPrice,
		StopLoss:   req.StopLoss,
		Target:     req.Target,
	}
	oid, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) (string, error) {
		return m.broker.SubmitBracket(c, order)
	})
	if err != nil {
		return "", err
	}

	m.openOrders[req.Ticker] = append(m.openOrders[req.Ticker], oid)
	m.log.Info("bracket submitted",
		zap.String("ticker", req.Ticker),
		zap.String("order_id", oid),
		zap.Int("qty", req.Quantity))
	return oid, nil
}

// ClosePosition cancels the ticker's outstanding orders, then submits a
// closing order. Urgency immediate skips retry backoff waits.
func (m *OrderManager) ClosePosition(ctx context.Context, ticker string, urgency strategies.Urgency) (string, error) {
	if m.analyze {
		oid := "dry-" + id.New()
		m.emitter.Emit(events.Event{
			Type:    events.DryRun,
			Ticker:  ticker,
			OrderID: oid,
			Reason:  "would close position",
			Urgency: string(urgency),
		})
		delete(m.openOrders, ticker)
		return oid, nil
	}

	if err := m.cancelOpenOrders(ctx, ticker); err != nil {
		m.log.Warn("cancel before close", zap.String("ticker", ticker), zap.Error(err))
	}

	timeout, attempts := m.callConfig()
	oid, err := call(ctx, timeout, attempts, urgency, func(c context.Context) (string, error) {
		return m.broker.ClosePosition(c, ticker)
	})
	if err != nil {
		return "", err
	}
	delete(m.openOrders, ticker)
	return oid, nil
}

// CancelOrder cancels a single order at the broker.
func (m *OrderManager) CancelOrder(ctx context.Context, orderID string) error {
	timeout, attempts := m.callConfig()
	_, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) (struct{}, error) {
		return struct{}{}, m.broker.CancelOrder(c, orderID)
	})
	return err
}

// Poll returns fills, rejections and cancellations since the last poll.
func (m *OrderManager) Poll(ctx context.Context) ([]broker.OrderEvent, error) {
	since := m.lastPoll
	timeout, attempts := m.callConfig()
	updates, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) ([]broker.OrderEvent, error) {
		return m.broker.PollOrderUpdates(c, since)
	})
	if err != nil {
		return nil, err
	}

	m.lastPoll = time.Now().UTC()
	for _, ev := range updates {
		if ev.Kind != broker.OrderEventFilled && ev.Kind != broker.OrderEventCanceled {
			continue
		}
		m.removeOrder(ev.Ticker, ev.OrderID)
	}
	return updates, nil
}

// OpenOrderIDs returns the tracked outstanding orders for a ticker.
func (m *OrderManager) OpenOrderIDs(ticker string) []string {
	return append([]string(nil), m.openOrders[ticker]...)
}

// Snapshot returns the outstanding order map for persistence.
func (m *OrderManager) Snapshot() map[string][]string {
	out := make(map[string][]string, len(m.openOrders))
	for ticker, ids := range m.openOrders {
		out[ticker] = append([]string(nil), ids...)
	}
	return out
}

// Restore replaces the outstanding order map.
func (m *OrderManager) Restore(orders map[string][]string) {
	m.openOrders = make(map[string][]string, len(orders))
	for ticker, ids := range orders {
		m.openOrders[ticker] = append([]string(nil), ids...)
	}
}

func (m *OrderManager) cancelOpenOrders(parent context.Context, ticker string) error {
	ctx, cancel := context.WithTimeout(parent, cancelConfirmTimeout)
	defer cancel()

	ids, err := m.broker.OpenOrders(ctx, ticker)
	if err != nil {
		return fmt.Errorf("list open orders: %w", err)
	}
	for _, oid := range ids {
		if err := m.broker.CancelOrder(ctx, oid); err != nil && !errors.Is(err, broker.ErrOrderNotFound) {
			return fmt.Errorf("cancel %s: %w", oid, err)
		}
	}
	return nil
}

func (m *OrderManager) removeOrder(ticker, orderID string) {
	ids := m.openOrders[ticker]
	for i, oid := range ids {
		if oid == orderID {
			m.openOrders[ticker] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.openOrders[ticker]) == 0 {
		delete(m.openOrders, ticker)
	}
}

// call runs one broker operation under the per-call timeout, retrying
// transient failures with exponential backoff. Immediate urgency skips the
// backoff sleeps.
func call[T any](parent context.Context, timeout time.Duration, attempts int, urgency strategies.Urgency, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(parent, timeout)
		out, err := op(ctx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !errors.Is(err, broker.ErrTransient) && !errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if urgency != strategies.UrgencyImmediate {
			wait := retryBase << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-parent.Done():
				return zero, parent.Err()
			}
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (m *OrderManager) callConfig() (time.Duration, int) {
	timeout := m.timeout
	if timeout <= 0 {
		timeout = DefaultBrokerTimeout
	}
	attempts := m.maxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return timeout, attempts
}
