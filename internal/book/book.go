// Package book implements the per-symbol limit order book: two sorted
// price ladders, top-of-book tracking, and price-time priority matching.
package book

import (
	"time"

	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/tidwall/btree"
)

// ladder is a price-sorted collection of resting levels. Bids sort
// descending (best bid first); asks sort ascending (best ask first) — the
// same ordering convention the saiputravu-Exchange book uses for its
// tidwall/btree price trees.
type ladder = btree.BTreeG[*priceLevel]

// Book is the order book for a single symbol.
type Book struct {
	Symbol domain.Symbol

	bids *ladder
	asks *ladder

	currentPrice    domain.Price
	hasCurrentPrice bool
	lastTradePrice  domain.Price
	hasLastTrade    bool
	bestBid         domain.Price
	hasBestBid      bool
	bestAsk         domain.Price
	hasBestAsk      bool
}

// New creates an order book seeded with the symbol's initial current_price.
func New(symbol domain.Symbol, seedPrice domain.Price) *Book {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price > b.price })
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price < b.price })
	return &Book{
		Symbol:          symbol,
		bids:            bids,
		asks:            asks,
		currentPrice:    seedPrice,
		hasCurrentPrice: true,
	}
}

func (b *Book) ladderFor(isBuy bool) *ladder {
	if isBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) oppositeLadder(isBuy bool) *ladder {
	return b.ladderFor(!isBuy)
}

// Add places a resting limit order into the side-appropriate ladder,
// creating the price level if one doesn't already exist, and recomputes
// top-of-book.
func (b *Book) Add(o *domain.Order) {
	b.addLocked(o)
	b.recomputeTopOfBook()
}

func (b *Book) addLocked(o *domain.Order) {
	side := b.ladderFor(o.IsBuy)
	if level, ok := side.GetMut(&priceLevel{price: o.Price}); ok {
		level.append(o)
		return
	}
	level := newPriceLevel(o.Price)
	level.append(o)
	side.Set(level)
}

// Match walks the opposite ladder in crossing order against incoming,
// consuming resting liquidity price-time-priority-first. If incoming is a
// Limit order with quantity left over once no more liquidity crosses, the
// remainder rests on incoming's own side under the same order id. Market
// orders never rest: any unmatched quantity is discarded (surfaced by the
// caller as remaining_quantity). Returns the trades produced, in the order
// they were matched.
func (b *Book) Match(incoming *domain.Order) []domain.Trade {
	var trades []domain.Trade
	qtyLeft := incoming.Qty
	opp := b.oppositeLadder(incoming.IsBuy)

	for qtyLeft > 0 {
		level, ok := opp.MinMut()
		if !ok {
			break
		}
		if incoming.OrderType == domain.Limit {
			if incoming.IsBuy && level.price > incoming.Price {
				break
			}
			if !incoming.IsBuy && level.price < incoming.Price {
				break
			}
		}

		now := time.Now()
		for _, resting := range level.orders {
			if qtyLeft == 0 {
				break
			}
			if resting.Qty == 0 {
				continue
			}
			tradeQty := minQty(qtyLeft, resting.Qty)
			trades = append(trades, domain.Trade{
				ID:    resting.ID,
				Price: level.price,
				Qty:   tradeQty,
				IsBuy: !incoming.IsBuy,
				Time:  now,
			})
			resting.Qty -= tradeQty
			qtyLeft -= tradeQty

			b.lastTradePrice, b.hasLastTrade = level.price, true
			b.currentPrice, b.hasCurrentPrice = level.price, true
		}

		level.pruneFilled()
		if level.empty() {
			opp.Delete(level)
		}
	}

	if qtyLeft > 0 && incoming.OrderType == domain.Limit {
		residual := *incoming
		residual.Qty = qtyLeft
		b.addLocked(&residual)
	}

	b.recomputeTopOfBook()
	return trades
}

func (b *Book) recomputeTopOfBook() {
	if top, ok := b.bids.MinMut(); ok {
		b.bestBid, b.hasBestBid = top.price, true
	} else {
		b.hasBestBid = false
	}
	if top, ok := b.asks.MinMut(); ok {
		b.bestAsk, b.hasBestAsk = top.price, true
	} else {
		b.hasBestAsk = false
	}
}

// DepthLevel is a single aggregated price level returned by Depth.
type DepthLevel struct {
	Price domain.Price
	Qty   domain.Quantity
}

// Depth returns up to the top N price levels per side: bids descending,
// asks ascending, each aggregated across every resting order at that price.
func (b *Book) Depth(n int) (bids, asks []DepthLevel) {
	bids = collectDepth(b.bids, n)
	asks = collectDepth(b.asks, n)
	return
}

func collectDepth(side *ladder, n int) []DepthLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]DepthLevel, 0, n)
	side.Scan(func(level *priceLevel) bool {
		levels = append(levels, DepthLevel{Price: level.price, Qty: level.totalQty()})
		return len(levels) < n
	})
	return levels
}

// Snapshot is the point-in-time top-of-book view.
type Snapshot struct {
	Symbol         domain.Symbol
	CurrentPrice   *domain.Price
	BestBid        *domain.Price
	BestAsk        *domain.Price
	LastTradePrice *domain.Price
}

func (b *Book) Snapshot() Snapshot {
	s := Snapshot{Symbol: b.Symbol}
	if b.hasCurrentPrice {
		p := b.currentPrice
		s.CurrentPrice = &p
	}
	if b.hasBestBid {
		p := b.bestBid
		s.BestBid = &p
	}
	if b.hasBestAsk {
		p := b.bestAsk
		s.BestAsk = &p
	}
	if b.hasLastTrade {
		p := b.lastTradePrice
		s.LastTradePrice = &p
	}
	return s
}

func minQty(a, b domain.Quantity) domain.Quantity {
	if a < b {
		return a
	}
	return b
}
