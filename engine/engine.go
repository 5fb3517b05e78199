// Package engine implements the deterministic execution core: a bounded
// signal queue, broker-reconciled position tracking, cooldown enforcement,
// order management and the cycle loop that ties them together. Exits are
// always evaluated before entries so a freed slot can be reused in the same
// cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/broker"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/events"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/id"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/journal"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/signals"
	"github.com/kimrejstrom/alpacalyzer-algo-trader/strategies"
)

// ErrNotRunning is returned by AddSignal outside the running state.
var ErrNotRunning = errors.New("engine is not running")

const (
	// DefaultCheckInterval is the cycle cadence.
	DefaultCheckInterval = 120 * time.Second

	// DefaultMaxPositions bounds concurrent open positions.
	DefaultMaxPositions = 10

	// DefaultMaxRejects is the per-ticker rejection count within the
	// reject window that triggers a cooldown.
	DefaultMaxRejects = 3

	// rejectWindow is the sliding window for counting order rejections.
	rejectWindow = time.Hour

	// cycleMargin is held back from the check interval so a cycle always
	// finishes before the next tick.
	cycleMargin = 10 * time.Second
)

type engineState int

const (
	stateStopped engineState = iota
	stateRunning
	stateDraining
)

// Config holds the engine's tunables. Zero values fall back to defaults.
type Config struct {
	CheckInterval time.Duration
	MaxPositions  int
	MaxRejects    int
	Cooldown      time.Duration
	QueueCapacity int
	SignalTTL     time.Duration
	StatePath     string
	Analyze       bool
}

func (c *Config) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = DefaultMaxPositions
	}
	if c.MaxRejects <= 0 {
		c.MaxRejects = DefaultMaxRejects
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.SignalTTL <= 0 {
		c.SignalTTL = DefaultSignalTTL
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
}

// Deps are the engine's collaborators.
type Deps struct {
	Broker     broker.Broker
	Signals    signals.Provider
	VIX        signals.VIXSource
	Strategies []strategies.Strategy
	Emitter    *events.Emitter
	Logger     *zap.Logger

	// Journal, when set, receives a trade record for every closed
	// position.
	Journal journal.Journal
}

type flusher interface{ Flush() }

// Engine owns the execution cycle. All trading decisions happen on the
// single cycle goroutine; AddSignal is the only concurrent entry point and
// goes through the locked queue.
type Engine struct {
	cfg     Config
	broker  broker.Broker
	signals signals.Provider
	vix     signals.VIXSource
	strats  []strategies.Strategy
	emitter *events.Emitter
	log     *zap.Logger

	queue     *SignalQueue
	tracker   *PositionTracker
	cooldowns *CooldownManager
	orders    *OrderManager
	store     *StateStore
	journal   journal.Journal

	mu    sync.Mutex
	state engineState
	stop  chan struct{}
	done  chan struct{}

	// rejects tracks order rejection times per ticker for the
	// repeated-rejection cooldown rule.
	rejects map[string][]time.Time

	now func() time.Time
}

func New(cfg Config, deps Deps) (*Engine, error) {
	cfg.applyDefaults()
	if deps.Broker == nil {
		return nil, errors.New("engine requires a broker")
	}
	if deps.Signals == nil {
		return nil, errors.New("engine requires a signal provider")
	}
	if len(deps.Strategies) == 0 {
		return nil, errors.New("engine requires at least one strategy")
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NewEmitter()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	e := &Engine{
		cfg:       cfg,
		broker:    deps.Broker,
		signals:   deps.Signals,
		vix:       deps.VIX,
		strats:    deps.Strategies,
		emitter:   deps.Emitter,
		log:       deps.Logger,
		queue:     NewSignalQueue(cfg.QueueCapacity, cfg.SignalTTL),
		tracker:   NewPositionTracker(),
		cooldowns: NewCooldownManager(),
		store:     NewStateStore(cfg.StatePath, deps.Logger),
		journal:   deps.Journal,
		rejects:   make(map[string][]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
	e.orders = NewOrderManager(deps.Broker, e.emitter, deps.Logger, cfg.Analyze)

	if err := e.restore(); err != nil {
		return nil, err
	}
	return e, nil
}

// restore loads persisted state into every component.
func (e *Engine) restore() error {
	state, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	e.queue.Restore(state.Queue)
	e.tracker.Restore(state.Positions, state.ClosedPositions)
	e.cooldowns.Restore(state.Cooldowns)
	e.orders.Restore(state.OpenOrders)
	for _, s := range e.strats {
		if st, ok := state.StrategyState[s.Name()]; ok {
			s.Restore(st)
		}
	}
	return nil
}

// AddSignal validates and enqueues a trade proposal. Only legal while the
// engine is running; draining engines refuse new work.
func (e *Engine) AddSignal(sig market.PendingSignal) error {
	e.mu.Lock()
	running := e.state == stateRunning
	e.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	now := e.now()
	if err := sig.Validate(); err != nil {
		e.emitter.Emit(events.Event{
			Type:   events.SignalRejected,
			Ticker: sig.Ticker,
			Reason: err.Error(),
		})
		return err
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = now
	}

	if err := e.queue.Add(sig, now); err != nil {
		e.emitter.Emit(events.Event{
			Type:   events.SignalRejected,
			Ticker: sig.Ticker,
			Reason: err.Error(),
		})
		return err
	}

	e.emitter.Emit(events.Event{
		Type:   events.SignalAccepted,
		Ticker: sig.Ticker,
		Side:   string(sig.Action),
		Fields: map[string]any{
			"priority":   sig.Priority,
			"confidence": sig.Confidence,
			"source":     sig.Source,
		},
	})
	return nil
}

// Start runs cycles at the configured interval until Stop is called or the
// context is canceled. It blocks.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != stateStopped {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.state = stateRunning
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state = stateStopped
		e.mu.Unlock()
		close(e.done)
	}()

	e.log.Info("engine started",
		zap.Duration("check_interval", e.cfg.CheckInterval),
		zap.Int("max_positions", e.cfg.MaxPositions),
		zap.Bool("analyze", e.orders.AnalyzeMode()))

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	// First cycle immediately, then on the tick.
	e.runCycleSafe(ctx)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case <-e.stop:
			e.drain()
			return nil
		case <-ticker.C:
			e.runCycleSafe(ctx)
		}
	}
}

// Stop asks a running engine to finish its current cycle, persist, and
// return from Start. It blocks until shutdown completes.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	e.state = stateDraining
	stop, done := e.stop, e.done
	e.mu.Unlock()

	close(stop)
	<-done
}

// drain persists final state on the way out.
func (e *Engine) drain() {
	if err := e.persist(); err != nil {
		e.log.Error("final persist", zap.Error(err))
	}
	e.log.Info("engine stopped")
}

func (e *Engine) runCycleSafe(ctx context.Context) {
	budget := e.cfg.CheckInterval - cycleMargin
	if budget <= 0 {
		budget = e.cfg.CheckInterval
	}
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if err := e.RunCycle(cctx); err != nil {
		e.log.Error("cycle failed", zap.Error(err))
	}
}

// RunCycle executes one full pass: flush the signal cache, reconcile
// positions against the broker, evaluate exits, then entries for however
// many slots remain, poll order updates, persist. A failed broker sync
// aborts the cycle; a failed persist does not.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := e.now()

	if f, ok := e.signals.(flusher); ok {
		f.Flush()
	}

	for _, sig := range e.queue.PruneExpired(start) {
		e.emitter.Emit(events.Event{
			Type:   events.SignalExpired,
			Ticker: sig.Ticker,
			Reason: fmt.Sprintf("expired %s in queue", sig.ExpiresAt.Format(time.RFC3339)),
		})
	}

	clock, account, err := e.marketSnapshot(ctx)
	if err != nil {
		e.emitter.Emit(events.Event{Type: events.SyncFailed, Reason: err.Error()})
		return fmt.Errorf("market snapshot: %w", err)
	}

	sync, err := e.syncPositions(ctx, start)
	if err != nil {
		e.emitter.Emit(events.Event{Type: events.SyncFailed, Reason: err.Error()})
		return fmt.Errorf("sync positions: %w", err)
	}

	mctx := e.marketContext(ctx, clock, account, start)

	exited := e.evaluateExits(ctx, mctx, start)

	entries := 0
	if clock.Status == market.StatusOpen {
		entries = e.evaluateEntries(ctx, mctx, exited, start)
	}

	fills := e.pollOrders(ctx, start)

	if err := e.persist(); err != nil {
		e.emitter.Emit(events.Event{Type: events.PersistenceFailed, Reason: err.Error()})
		e.log.Error("persist state", zap.Error(err))
	}

	e.emitter.Emit(events.Event{
		Type: events.CycleComplete,
		Fields: map[string]any{
			"duration_ms":   e.now().Sub(start).Milliseconds(),
			"positions":     e.tracker.Count(),
			"queue_size":    e.queue.Size(),
			"exits":         len(exited),
			"entries":       entries,
			"fills":         fills,
			"market_status": string(clock.Status),
			"closed_since":  len(sync.Removed),
		},
	})
	return nil
}

// marketSnapshot fetches the session clock and account in one place so a
// broker outage aborts the cycle before any decisions are made.
func (e *Engine) marketSnapshot(ctx context.Context) (broker.Clock, broker.Account, error) {
	timeout, attempts := e.orders.callConfig()

	clock, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) (broker.Clock, error) {
		return e.broker.MarketClock(c)
	})
	if err != nil {
		return broker.Clock{}, broker.Account{}, fmt.Errorf("market clock: %w", err)
	}

	account, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) (broker.Account, error) {
		return e.broker.Account(c)
	})
	if err != nil {
		return broker.Clock{}, broker.Account{}, fmt.Errorf("account: %w", err)
	}
	return clock, account, nil
}

// syncPositions reconciles the tracker with the broker. Positions the broker
// no longer reports were closed by bracket legs between cycles; they get a
// position_closed event and a cooldown.
func (e *Engine) syncPositions(ctx context.Context, now time.Time) (SyncResult, error) {
	timeout, attempts := e.orders.callConfig()
	positions, err := call(ctx, timeout, attempts, strategies.UrgencyNormal, func(c context.Context) ([]broker.Position, error) {
		return e.broker.ListPositions(c)
	})
	if err != nil {
		return SyncResult{}, err
	}

	res := e.tracker.Sync(positions, now)
	for _, pos := range res.Removed {
		e.emitter.Emit(events.Event{
			Type:     events.PositionClosed,
			Ticker:   pos.Ticker,
			Strategy: pos.StrategyName,
			Quantity: pos.Quantity,
			Price:    pos.CurrentPrice,
			PnL:      pos.UnrealizedPnL,
			Reason:   "closed at broker",
		})
		e.cooldowns.Add(pos.Ticker, e.cfg.Cooldown, "position closed", "sync", now)
		e.journalClose(pos, now)
	}
	for _, ticker := range res.Added {
		e.log.Info("admitted unknown position", zap.String("ticker", ticker))
	}
	return res, nil
}

func (e *Engine) marketContext(ctx context.Context, clock broker.Clock, account broker.Account, now time.Time) strategies.MarketContext {
	return strategies.MarketContext{
		VIX:               signals.ResolveVIX(ctx, e.vix),
		MarketStatus:      clock.Status,
		AccountEquity:     account.Equity,
		BuyingPower:       account.BuyingPower,
		ExistingPositions: e.tracker.Tickers(),
		CooldownTickers:   e.cooldowns.ActiveTickers(now),
	}
}

// evaluateExits walks open positions and closes the ones whose owning
// strategy says to exit. Bracket-protected positions are left to the broker.
// Returns the set of tickers closed this cycle; their slots are reusable
// immediately even though the tracker drops them on next sync.
func (e *Engine) evaluateExits(ctx context.Context, mctx strategies.MarketContext, now time.Time) map[string]bool {
	exited := make(map[string]bool)

	for _, pos := range e.tracker.All() {
		if pos.HasBracketOrder {
			continue
		}

		sig, err := e.signals.FetchSignals(ctx, pos.Ticker)
		if err != nil {
			// Data error; hold the position and try again next cycle.
			e.log.Warn("exit signals unavailable",
				zap.String("ticker", pos.Ticker),
				zap.Error(err))
			continue
		}

		decision := e.evalExit(pos, sig, mctx)
		if !decision.ShouldExit {
			continue
		}

		oid, err := e.orders.ClosePosition(ctx, pos.Ticker, decision.Urgency)
		if err != nil {
			e.emitter.Emit(events.Event{
				Type:   events.InternalError,
				Ticker: pos.Ticker,
				Reason: fmt.Sprintf("close position: %v", err),
			})
			continue
		}

		pos.ExitAttempts++
		pos.LastExitAttempt = now
		e.emitter.Emit(events.Event{
			Type:     events.ExitTriggered,
			Ticker:   pos.Ticker,
			Strategy: pos.StrategyName,
			PnL:      pos.UnrealizedPnL,
			Reason:   decision.Reason,
			Urgency:  string(decision.Urgency),
		})

		exited[pos.Ticker] = true
		e.cooldowns.Add(pos.Ticker, e.cfg.Cooldown, decision.Reason, pos.StrategyName, now)
		e.log.Info("position exit submitted",
			zap.String("ticker", pos.Ticker),
			zap.String("order_id", oid),
			zap.String("reason", decision.Reason))
	}
	return exited
}

// evalExit routes to the owning strategy; positions with unknown provenance
// are shown to every strategy and exit on the first affirmative.
func (e *Engine) evalExit(pos *market.Position, sig *signals.TechnicalSignals, mctx strategies.MarketContext) strategies.ExitDecision {
	if s := e.strategyByName(pos.StrategyName); s != nil {
		return e.safeExit(s, pos, sig, mctx)
	}
	for _, s := range e.strats {
		if d := e.safeExit(s, pos, sig, mctx); d.ShouldExit {
			return d
		}
	}
	return strategies.Hold("no strategy claims position")
}

// evaluateEntries pops ready proposals for the free slots and submits
// bracket orders for accepted ones. Popped proposals that are declined are
// discarded, not requeued.
func (e *Engine) evaluateEntries(ctx context.Context, mctx strategies.MarketContext, exited map[string]bool, now time.Time) int {
	slots := e.cfg.MaxPositions - (e.tracker.Count() - len(exited))
	if slots <= 0 {
		if e.queue.Size() > 0 {
			e.emitter.Emit(events.Event{
				Type:   events.CapacityReached,
				Reason: fmt.Sprintf("%d positions open, %d queued", e.tracker.Count(), e.queue.Size()),
			})
		}
		return 0
	}

	ready, expired := e.queue.PopReady(now, slots)
	for _, sig := range expired {
		e.emitter.Emit(events.Event{
			Type:   events.SignalExpired,
			Ticker: sig.Ticker,
			Reason: fmt.Sprintf("expired %s before evaluation", sig.ExpiresAt.Format(time.RFC3339)),
		})
	}

	entered := 0
	for _, prop := range ready {
		// A ticker exited this cycle stays out until its cooldown lapses.
		if exited[prop.Ticker] {
			e.emitter.Emit(events.Event{
				Type:   events.SignalRejected,
				Ticker: prop.Ticker,
				Reason: "exited this cycle",
			})
			continue
		}
		if e.enterOne(ctx, prop, mctx, now) {
			entered++
			mctx.ExistingPositions[prop.Ticker] = true
		}
	}
	return entered
}

// enterOne evaluates a single proposal against the strategies and submits
// the bracket when one accepts.
func (e *Engine) enterOne(ctx context.Context, prop market.PendingSignal, mctx strategies.MarketContext, now time.Time) bool {
	sig, err := e.signals.FetchSignals(ctx, prop.Ticker)
	if err != nil {
		e.emitter.Emit(events.Event{
			Type:   events.SignalRejected,
			Ticker: prop.Ticker,
			Reason: fmt.Sprintf("signals unavailable: %v", err),
		})
		return false
	}

	var decision strategies.EntryDecision
	var by strategies.Strategy
	for _, s := range e.strats {
		d := e.safeEntry(s, &prop, sig, mctx)
		if d.ShouldEnter {
			decision, by = d, s
			break
		}
		decision = d
	}

	if by == nil {
		e.emitter.Emit(events.Event{
			Type:   events.SignalRejected,
			Ticker: prop.Ticker,
			Reason: decision.Reason,
		})
		return false
	}

	if err := decision.Check(); err != nil {
		e.emitter.Emit(events.Event{
			Type:     events.StrategyError,
			Ticker:   prop.Ticker,
			Strategy: by.Name(),
			Reason:   err.Error(),
		})
		return false
	}

	action := market.Buy
	if decision.Side == market.SideShort {
		action = market.Short
	}

	req := OrderRequest{
		Ticker:     prop.Ticker,
		Side:       action,
		Quantity:   decision.SuggestedSize,
		EntryPrice: decision.EntryPrice,
		StopLoss:   decision.StopLoss,
		Target:     decision.Target,
	}

	e.emitter.Emit(events.Event{
		Type:     events.EntryTriggered,
		Ticker:   prop.Ticker,
		Strategy: by.Name(),
		Side:     string(action),
		Quantity: decision.SuggestedSize,
		Price:    decision.EntryPrice,
		Reason:   decision.Reason,
	})

	oid, err := e.orders.SubmitBracket(ctx, req)
	if err != nil {
		e.emitter.Emit(events.Event{
			Type:   events.OrderRejected,
			Ticker: prop.Ticker,
			Reason: err.Error(),
		})
		e.recordReject(prop.Ticker, now)
		return false
	}

	e.tracker.AddPosition(market.Position{
		Ticker:          prop.Ticker,
		Side:            decision.Side,
		Quantity:        decision.SuggestedSize,
		AvgEntryPrice:   decision.EntryPrice,
		CurrentPrice:    decision.EntryPrice,
		StrategyName:    by.Name(),
		OpenedAt:        now,
		EntryOrderID:    oid,
		StopLoss:        decision.StopLoss,
		Target:          decision.Target,
		HasBracketOrder: true,
	})
	return true
}

// pollOrders folds broker order updates into events and the tracker.
func (e *Engine) pollOrders(ctx context.Context, now time.Time) int {
	updates, err := e.orders.Poll(ctx)
	if err != nil {
		e.emitter.Emit(events.Event{
			Type:   events.InternalError,
			Reason: fmt.Sprintf("poll orders: %v", err),
		})
		return 0
	}

	fills := 0
	for _, up := range updates {
		switch up.Kind {
		case broker.OrderEventFilled:
			fills++
			e.emitter.Emit(events.Event{
				Type:     events.OrderFilled,
				Ticker:   up.Ticker,
				OrderID:  up.OrderID,
				Quantity: up.FillQty,
				Price:    up.FillPrice,
			})
			if pos, ok := e.tracker.Get(up.Ticker); ok && pos.EntryOrderID == up.OrderID {
				pos.AvgEntryPrice = up.FillPrice
				pos.UpdatePrice(up.FillPrice)
				e.emitter.Emit(events.Event{
					Type:     events.PositionOpened,
					Ticker:   up.Ticker,
					Strategy: pos.StrategyName,
					Side:     string(pos.Side),
					Quantity: pos.Quantity,
					Price:    up.FillPrice,
				})
			}
		case broker.OrderEventRejected:
			e.emitter.Emit(events.Event{
				Type:    events.OrderRejected,
				Ticker:  up.Ticker,
				OrderID: up.OrderID,
				Reason:  up.Reason,
			})
			// Only a rejected entry order invalidates the tracked
			// position. A rejected close or bracket leg leaves the
			// position live but without broker-side protection.
			if pos, ok := e.tracker.Get(up.Ticker); ok {
				if pos.EntryOrderID == up.OrderID {
					e.tracker.Remove(up.Ticker)
				} else {
					pos.HasBracketOrder = false
				}
			}
			e.recordReject(up.Ticker, now)
		case broker.OrderEventCanceled:
			e.emitter.Emit(events.Event{
				Type:    events.OrderCanceled,
				Ticker:  up.Ticker,
				OrderID: up.OrderID,
				Reason:  up.Reason,
			})
			// A canceled bracket no longer protects the position;
			// dynamic exits take over on the next cycle.
			if pos, ok := e.tracker.Get(up.Ticker); ok && pos.HasBracketOrder {
				pos.HasBracketOrder = false
				e.log.Warn("bracket order canceled, dynamic exits engaged",
					zap.String("ticker", up.Ticker),
					zap.String("order_id", up.OrderID))
			}
		}
	}
	return fills
}

// recordReject counts a rejection and places a cooldown after MaxRejects
// within the window.
func (e *Engine) recordReject(ticker string, now time.Time) {
	cutoff := now.Add(-rejectWindow)
	kept := e.rejects[ticker][:0]
	for _, t := range e.rejects[ticker] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	e.rejects[ticker] = kept

	if len(kept) >= e.cfg.MaxRejects {
		until := e.cooldowns.Add(ticker, e.cfg.Cooldown, "repeated order rejections", "engine", now)
		delete(e.rejects, ticker)
		e.log.Warn("ticker cooled down after rejections",
			zap.String("ticker", ticker),
			zap.Time("until", until))
	}
}

// persist snapshots every component into one atomic state file.
func (e *Engine) persist() error {
	now := e.now()
	state := EngineState{
		Queue:           e.queue.Snapshot(),
		Positions:       e.tracker.Snapshot(),
		ClosedPositions: e.tracker.ClosedHistory(),
		Cooldowns:       e.cooldowns.Snapshot(now),
		OpenOrders:      e.orders.Snapshot(),
		StrategyState:   make(map[string]map[string]any, len(e.strats)),
	}
	for _, s := range e.strats {
		if st := s.State(); len(st) > 0 {
			state.StrategyState[s.Name()] = st
		}
	}
	return e.store.Save(state)
}

// journalClose writes the closed position to the trade journal.
func (e *Engine) journalClose(pos market.Position, now time.Time) {
	if e.journal == nil {
		return
	}
	tradeID := pos.EntryOrderID
	if tradeID == "" {
		tradeID = id.New()
	}
	err := e.journal.RecordTrade(journal.TradeRecord{
		TradeID:     tradeID,
		Ticker:      pos.Ticker,
		Side:        string(pos.Side),
		Quantity:    pos.Quantity,
		EntryPrice:  pos.AvgEntryPrice,
		ExitPrice:   pos.CurrentPrice,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    now,
		RealizedPnL: pos.UnrealizedPnL,
		Strategy:    pos.StrategyName,
		Reason:      "closed at broker",
	})
	if err != nil {
		e.log.Warn("journal trade", zap.String("ticker", pos.Ticker), zap.Error(err))
	}
}

func (e *Engine) strategyByName(name string) strategies.Strategy {
	for _, s := range e.strats {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// safeEntry contains a panicking strategy to a strategy_error event.
func (e *Engine) safeEntry(s strategies.Strategy, prop *market.PendingSignal, sig *signals.TechnicalSignals, mctx strategies.MarketContext) (d strategies.EntryDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.emitter.Emit(events.Event{
				Type:     events.StrategyError,
				Ticker:   prop.Ticker,
				Strategy: s.Name(),
				Reason:   fmt.Sprintf("entry panic: %v", r),
			})
			d = strategies.EntryDecision{ShouldEnter: false, Reason: "strategy panic"}
		}
	}()
	return s.EvaluateEntry(prop, sig, mctx)
}

func (e *Engine) safeExit(s strategies.Strategy, pos *market.Position, sig *signals.TechnicalSignals, mctx strategies.MarketContext) (d strategies.ExitDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.emitter.Emit(events.Event{
				Type:     events.StrategyError,
				Ticker:   pos.Ticker,
				Strategy: s.Name(),
				Reason:   fmt.Sprintf("exit panic: %v", r),
			})
			d = strategies.Hold("strategy panic")
		}
	}()
	return s.EvaluateExit(pos, sig, mctx)
}

// Tracker exposes the position tracker for status reporting.
func (e *Engine) Tracker() *PositionTracker { return e.tracker }

// Queue exposes the signal queue for status reporting.
func (e *Engine) Queue() *SignalQueue { return e.queue }

// Orders exposes the order manager.
func (e *Engine) Orders() *OrderManager { return e.orders }

// Cooldowns exposes the cooldown manager.
func (e *Engine) Cooldowns() *CooldownManager { return e.cooldowns }
