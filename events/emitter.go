package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler receives events. Handlers must be fast; slow sinks should buffer
// internally.
type Handler func(Event)

// Emitter fans events out to registered handlers. Registration and emission
// are safe for concurrent use; delivery order per emitter is the emission
// order.
type Emitter struct {
	mu       sync.RWMutex
	handlers []Handler
	byType   map[Type][]Handler
}

func NewEmitter() *Emitter {
	return &Emitter{byType: make(map[Type][]Handler)}
}

// Subscribe registers a handler for all event types.
func (e *Emitter) Subscribe(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// SubscribeType registers a handler for a single event type.
func (e *Emitter) SubscribeType(t Type, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byType[t] = append(e.byType[t], h)
}

// Emit stamps the event with the current UTC time when unset and delivers it
// synchronously to every matching handler.
func (e *Emitter) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	e.mu.RLock()
	all := e.handlers
	typed := e.byType[ev.Type]
	e.mu.RUnlock()

	for _, h := range all {
		h(ev)
	}
	for _, h := range typed {
		h(ev)
	}
}

// LogHandler returns a handler that writes each event as a structured log
// line.
func LogHandler(log *zap.Logger) Handler {
	return func(ev Event) {
		fields := []zap.Field{zap.Time("at", ev.Time)}
		if ev.Ticker != "" {
			fields = append(fields, zap.String("ticker", ev.Ticker))
		}
		if ev.Strategy != "" {
			fields = append(fields, zap.String("strategy", ev.Strategy))
		}
		if ev.OrderID != "" {
			fields = append(fields, zap.String("order_id", ev.OrderID))
		}
		if ev.Quantity != 0 {
			fields = append(fields, zap.Int("qty", ev.Quantity))
		}
		if ev.Price != 0 {
			fields = append(fields, zap.Float64("price", ev.Price))
		}
		if ev.Reason != "" {
			fields = append(fields, zap.String("reason", ev.Reason))
		}
		if ev.Urgency != "" {
			fields = append(fields, zap.String("urgency", ev.Urgency))
		}
		for k, v := range ev.Fields {
			fields = append(fields, zap.Any(k, v))
		}

		switch ev.Type {
		case SyncFailed, PersistenceFailed, OrderRejected, OrderCanceled, StrategyError, InternalError:
			log.Warn(string(ev.Type), fields...)
		default:
			log.Info(string(ev.Type), fields...)
		}
	}
}
