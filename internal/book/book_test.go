package book

import (
	"math/rand"
	"testing"

	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id uint64, price domain.Price, qty domain.Quantity, isBuy bool, t domain.OrderType) *domain.Order {
	return &domain.Order{ID: id, Symbol: domain.BTCUSD, Price: price, Qty: qty, IsBuy: isBuy, OrderType: t}
}

func restLimit(t *testing.T, b *Book, id uint64, price domain.Price, qty domain.Quantity, isBuy bool) {
	o := newOrder(id, price, qty, isBuy, domain.Limit)
	trades := b.Match(o)
	require.Empty(t, trades)
}

// S1 — resting buy, resting sell, no cross.
func TestS1NoCross(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	restLimit(t, b, 1, 10000, 5, true)
	restLimit(t, b, 2, 10100, 3, false)

	snap := b.Snapshot()
	require.NotNil(t, snap.BestBid)
	require.NotNil(t, snap.BestAsk)
	assert.Equal(t, domain.Price(10000), *snap.BestBid)
	assert.Equal(t, domain.Price(10100), *snap.BestAsk)

	bids, asks := b.Depth(10)
	assert.Equal(t, []DepthLevel{{10000, 5}}, bids)
	assert.Equal(t, []DepthLevel{{10100, 3}}, asks)
}

// S2 — limit buy crosses one level.
func TestS2CrossOneLevel(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	restLimit(t, b, 1, 10000, 5, true)
	restLimit(t, b, 2, 10100, 3, false)

	taker := newOrder(3, 10100, 2, true, domain.Limit)
	trades := b.Match(taker)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.Price(10100), trades[0].Price)
	assert.Equal(t, domain.Quantity(2), trades[0].Qty)

	filled := sumQty(trades)
	remaining := taker.Qty - filled
	assert.Equal(t, domain.Quantity(0), remaining)

	_, asks := b.Depth(10)
	require.Len(t, asks, 1)
	assert.Equal(t, domain.Quantity(1), asks[0].Qty)

	snap := b.Snapshot()
	require.NotNil(t, snap.BestAsk)
	assert.Equal(t, domain.Price(10100), *snap.BestAsk)
}

// S3 — limit buy sweeps two levels and rests a residual.
func TestS3SweepAndRest(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	restLimit(t, b, 1, 10100, 2, false)
	restLimit(t, b, 2, 10200, 3, false)

	taker := newOrder(3, 10200, 10, true, domain.Limit)
	trades := b.Match(taker)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Price(10100), trades[0].Price)
	assert.Equal(t, domain.Quantity(2), trades[0].Qty)
	assert.Equal(t, domain.Price(10200), trades[1].Price)
	assert.Equal(t, domain.Quantity(3), trades[1].Qty)

	remaining := taker.Qty - sumQty(trades)
	assert.Equal(t, domain.Quantity(5), remaining)

	snap := b.Snapshot()
	require.NotNil(t, snap.BestBid)
	assert.Equal(t, domain.Price(10200), *snap.BestBid)
	assert.Nil(t, snap.BestAsk)

	bids, _ := b.Depth(10)
	require.Len(t, bids, 1)
	assert.Equal(t, domain.Price(10200), bids[0].Price)
	assert.Equal(t, domain.Quantity(5), bids[0].Qty)
}

// S4 — market buy against empty asks.
func TestS4MarketBuyNoLiquidity(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	taker := newOrder(1, 0, 4, true, domain.Market)
	trades := b.Match(taker)
	assert.Empty(t, trades)
	remaining := taker.Qty - sumQty(trades)
	assert.Equal(t, domain.Quantity(4), remaining)

	snap := b.Snapshot()
	assert.Nil(t, snap.BestAsk)
}

// S5 — market sell partial fill.
func TestS5MarketSellPartialFill(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	restLimit(t, b, 1, 9900, 1, true)
	restLimit(t, b, 2, 9800, 2, true)

	taker := newOrder(3, 0, 5, false, domain.Market)
	trades := b.Match(taker)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Price(9900), trades[0].Price)
	assert.Equal(t, domain.Quantity(1), trades[0].Qty)
	assert.Equal(t, domain.Price(9800), trades[1].Price)
	assert.Equal(t, domain.Quantity(2), trades[1].Qty)

	remaining := taker.Qty - sumQty(trades)
	assert.Equal(t, domain.Quantity(2), remaining)

	snap := b.Snapshot()
	assert.Nil(t, snap.BestBid)
	require.NotNil(t, snap.LastTradePrice)
	assert.Equal(t, domain.Price(9800), *snap.LastTradePrice)
	require.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, domain.Price(9800), *snap.CurrentPrice)
}

// S6 — time priority at a single price level.
func TestS6TimePriority(t *testing.T) {
	b := New(domain.BTCUSD, 0)
	restLimit(t, b, 1, 10000, 1, false) // A
	restLimit(t, b, 2, 10000, 1, false) // B
	restLimit(t, b, 3, 10000, 1, false) // C

	taker := newOrder(4, 10000, 2, true, domain.Limit)
	trades := b.Match(taker)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].ID) // A first
	assert.Equal(t, uint64(2), trades[1].ID) // then B

	_, asks := b.Depth(10)
	require.Len(t, asks, 1)
	assert.Equal(t, domain.Quantity(1), asks[0].Qty) // C remains
}

func sumQty(trades []domain.Trade) domain.Quantity {
	var total domain.Quantity
	for _, tr := range trades {
		total += tr.Qty
	}
	return total
}

// TestInvariantsUnderRandomSequence drives a random sequence of limit and
// market orders and asserts the book invariants hold after every operation.
func TestInvariantsUnderRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := New(domain.BTCUSD, 10000)

	var nextID uint64
	lastID := uint64(0)
	for i := 0; i < 2000; i++ {
		nextID++
		isBuy := rng.Intn(2) == 0
		isMarket := rng.Intn(5) == 0
		qty := domain.Quantity(rng.Intn(20) + 1)
		price := domain.Price(9900 + rng.Intn(300))

		ot := domain.Limit
		if isMarket {
			ot = domain.Market
		}
		incoming := newOrder(nextID, price, qty, isBuy, ot)
		before := incoming.Qty
		trades := b.Match(incoming)

		assert.Greater(t, nextID, lastID, "ids must be strictly increasing")
		lastID = nextID

		var filled domain.Quantity
		for _, tr := range trades {
			filled += tr.Qty
		}
		assert.LessOrEqual(t, filled, before, "conservation: filled qty must not exceed incoming qty")

		assertInvariants(t, b)
	}
}

func assertInvariants(t *testing.T, b *Book) {
	t.Helper()
	snap := b.Snapshot()
	if snap.BestBid != nil && snap.BestAsk != nil {
		assert.Less(t, *snap.BestBid, *snap.BestAsk, "book must not be crossed")
	}

	b.bids.Scan(func(level *priceLevel) bool {
		assert.False(t, level.empty(), "empty price levels must be pruned")
		for _, o := range level.orders {
			assert.Greater(t, o.Qty, domain.Quantity(0), "resting orders must have positive qty")
		}
		return true
	})
	b.asks.Scan(func(level *priceLevel) bool {
		assert.False(t, level.empty(), "empty price levels must be pruned")
		for _, o := range level.orders {
			assert.Greater(t, o.Qty, domain.Quantity(0), "resting orders must have positive qty")
		}
		return true
	})
}
