// Package registry holds the process-wide symbol -> order book map and the
// monotonic order-id counter, both guarded by a single coarse mutex per
// spec.md §5's reference concurrency model.
package registry

import (
	"fmt"
	"sync"

	"github.com/ai-agentic-browser/exchange/internal/book"
	"github.com/ai-agentic-browser/exchange/internal/domain"
)

// DefaultSeeds mirrors original_source/src/global.rs's ORDERBOOKS
// initialization: each symbol's book starts with a seeded current_price
// (cents) and no resting orders.
var DefaultSeeds = map[domain.Symbol]domain.Price{
	domain.BTCUSD: 100000_00,
	domain.ETHUSD: 4000_00,
	domain.SOLUSD: 170_00,
}

// Registry is the worker's handle to reach a symbol's book and to mint
// order ids. Intake and the gateway hold no Registry; they read book state
// through the worker via intake.QueryOrderbook.
type Registry struct {
	mu     sync.Mutex
	books  map[domain.Symbol]*book.Book
	nextID uint64
}

// New builds a registry with one book per seed entry. Symbols outside
// domain.Symbols are accepted (seeds is caller-supplied) but ParseSymbol
// rejects anything else at intake, so in practice this is DefaultSeeds.
func New(seeds map[domain.Symbol]domain.Price) *Registry {
	books := make(map[domain.Symbol]*book.Book, len(seeds))
	for sym, price := range seeds {
		books[sym] = book.New(sym, price)
	}
	return &Registry{books: books, nextID: 1}
}

// NextOrderID returns the next order id, starting at 1 and increasing by
// one on every call, matching original_source's NEXT_ORDER_ID counter.
func (r *Registry) NextOrderID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

// Match locks the registry, looks up the book for symbol, and runs the
// match against it. The lock is held for the full call so no two matches
// against any symbol's book interleave — spec.md §5's single coarse guard,
// not per-symbol locking.
func (r *Registry) Match(symbol domain.Symbol, order *domain.Order) ([]domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[symbol]
	if !ok {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	return b.Match(order), nil
}

// Snapshot returns the current top-of-book view for symbol.
func (r *Registry) Snapshot(symbol domain.Symbol) (book.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[symbol]
	if !ok {
		return book.Snapshot{}, fmt.Errorf("invalid symbol %q", symbol)
	}
	return b.Snapshot(), nil
}

// Depth returns up to n aggregated levels per side for symbol.
func (r *Registry) Depth(symbol domain.Symbol, n int) (bids, asks []book.DepthLevel, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[symbol]
	if !ok {
		return nil, nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	bids, asks = b.Depth(n)
	return bids, asks, nil
}
