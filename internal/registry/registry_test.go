package registry

import (
	"testing"

	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOrderIDStrictlyIncreasing(t *testing.T) {
	r := New(DefaultSeeds)
	last := uint64(0)
	for i := 0; i < 100; i++ {
		id := r.NextOrderID()
		assert.Greater(t, id, last)
		last = id
	}
}

func TestMatchUnknownSymbol(t *testing.T) {
	r := New(DefaultSeeds)
	_, err := r.Match(domain.Symbol("DOGEUSD"), &domain.Order{})
	require.Error(t, err)
}

func TestMatchSeedsSnapshot(t *testing.T) {
	r := New(DefaultSeeds)
	snap, err := r.Snapshot(domain.BTCUSD)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, domain.Price(100000_00), *snap.CurrentPrice)
	assert.Nil(t, snap.BestBid)
	assert.Nil(t, snap.BestAsk)
}

func TestMatchRestsAndDepth(t *testing.T) {
	r := New(DefaultSeeds)
	id := r.NextOrderID()
	order := &domain.Order{ID: id, Symbol: domain.ETHUSD, Price: 4000_00, Qty: 3, IsBuy: true, OrderType: domain.Limit}
	trades, err := r.Match(domain.ETHUSD, order)
	require.NoError(t, err)
	assert.Empty(t, trades)

	bids, asks, err := r.Depth(domain.ETHUSD, 10)
	require.NoError(t, err)
	assert.Empty(t, asks)
	require.Len(t, bids, 1)
	assert.Equal(t, domain.Quantity(3), bids[0].Qty)
}
