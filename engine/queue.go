package engine

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

var (
	ErrDuplicateTicker = errors.New("duplicate ticker in queue")
	ErrQueueFull       = errors.New("signal queue at capacity")
	ErrSignalExpired   = errors.New("signal already expired")
)

const (
	// DefaultQueueCapacity bounds the signal queue.
	DefaultQueueCapacity = 100

	// DefaultSignalTTL is assigned when a proposal arrives without an
	// expiry.
	DefaultSignalTTL = 4 * time.Hour
)

// SignalQueue is a bounded priority queue of trade proposals with one entry
// per ticker. Lower priority values pop first; ties break FIFO on creation
// time. It is the engine's admission port and safe for concurrent use.
type SignalQueue struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	items      signalHeap
	tickers    map[string]bool
	seq        uint64
}

func NewSignalQueue(capacity int, defaultTTL time.Duration) *SignalQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultSignalTTL
	}
	return &SignalQueue{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		tickers:    make(map[string]bool),
	}
}

// Add admits a proposal. A proposal without an expiry gets the default TTL.
// Rejections are typed: ErrDuplicateTicker, ErrQueueFull, ErrSignalExpired.
func (q *SignalQueue) Add(sig market.PendingSignal, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tickers[sig.Ticker] {
		return ErrDuplicateTicker
	}
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	if sig.ExpiresAt.IsZero() {
		sig.ExpiresAt = sig.CreatedAt.Add(q.defaultTTL)
	}
	if sig.Expired(now) {
		return ErrSignalExpired
	}

	q.seq++
	heap.Push(&q.items, &queuedSignal{signal: sig, seq: q.seq})
	q.tickers[sig.Ticker] = true
	return nil
}

// PopReady removes and returns up to limit fresh proposals in priority
// order. Expired proposals encountered along the way are dropped and
// returned separately so the caller can report them.
func (q *SignalQueue) PopReady(now time.Time, limit int) (ready, expired []market.PendingSignal) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(ready) < limit && len(q.items) > 0 {
		item := heap.Pop(&q.items).(*queuedSignal)
		delete(q.tickers, item.signal.Ticker)
		if item.signal.Expired(now) {
			expired = append(expired, item.signal)
			continue
		}
		ready = append(ready, item.signal)
	}
	return ready, expired
}

// PruneExpired drops every expired proposal and returns them.
func (q *SignalQueue) PruneExpired(now time.Time) []market.PendingSignal {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []market.PendingSignal
	kept := q.items[:0]
	for _, item := range q.items {
		if item.signal.Expired(now) {
			expired = append(expired, item.signal)
			delete(q.tickers, item.signal.Ticker)
		} else {
			kept = append(kept, item)
		}
	}
	q.items = kept
	heap.Init(&q.items)
	return expired
}

// Peek returns the next proposal without removing it.
func (q *SignalQueue) Peek() (market.PendingSignal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return market.PendingSignal{}, false
	}
	return q.items[0].signal, true
}

func (q *SignalQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *SignalQueue) Contains(ticker string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tickers[ticker]
}

// Remove drops the queued proposal for ticker, reporting whether one
// existed.
func (q *SignalQueue) Remove(ticker string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.signal.Ticker == ticker {
			heap.Remove(&q.items, i)
			delete(q.tickers, ticker)
			return true
		}
	}
	return false
}

// Snapshot returns the queued proposals in pop order for persistence.
func (q *SignalQueue) Snapshot() []market.PendingSignal {
	q.mu.Lock()
	defer q.mu.Unlock()

	tmp := make(signalHeap, len(q.items))
	copy(tmp, q.items)
	heap.Init(&tmp)

	out := make([]market.PendingSignal, 0, len(tmp))
	for len(tmp) > 0 {
		out = append(out, heap.Pop(&tmp).(*queuedSignal).signal)
	}
	return out
}

// Restore replaces the queue contents, keeping the dedup and capacity
// invariants. Signals beyond capacity or for duplicate tickers are dropped.
func (q *SignalQueue) Restore(sigs []market.PendingSignal) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[:0]
	q.tickers = make(map[string]bool)
	for _, sig := range sigs {
		if q.tickers[sig.Ticker] || len(q.items) >= q.capacity {
			continue
		}
		q.seq++
		q.items = append(q.items, &queuedSignal{signal: sig, seq: q.seq})
		q.tickers[sig.Ticker] = true
	}
	heap.Init(&q.items)
}

type queuedSignal struct {
	signal market.PendingSignal
	seq    uint64
}

type signalHeap []*queuedSignal

func (h signalHeap) Len() int { return len(h) }

func (h signalHeap) Less(i, j int) bool {
	a, b := h[i].signal, h[j].signal
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return h[i].seq < h[j].seq
}

func (h signalHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *signalHeap) Push(x any) { *h = append(*h, x.(*queuedSignal)) }

func (h *signalHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
