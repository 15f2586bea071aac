package intake

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		OrderQueue:          "order",
		OrderbookQueryQueue: "orderbook_query",
		ResponseTopicPrefix: "response:",
		MarketUpdatesTopic:  "market_updates",
		ResponseDeadline:    2 * time.Second,
	}
}

// fakeWorker pops exactly one envelope off the queue and publishes a
// canned success response to response:{request_id}, simulating the
// matching worker's half of the round trip.
func fakeWorker(t *testing.T, b broker.Broker, cfg config.MatchingConfig, result Result) {
	t.Helper()
	ctx := context.Background()
	payload, err := b.Pop(ctx, cfg.OrderQueue)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	result.ResultID = 1

	out, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, cfg.ResponseTopicPrefix+env.RequestID, out))
}

func TestSubmitRoundTrip(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)

	go fakeWorker(t, b, cfg, Result{RemainingQuantity: 0, Trades: []TradeWire{}})

	result, err := in.Submit(context.Background(), SubmissionRequest{
		Symbol:    "BTCUSD",
		Side:      "Buy",
		Price:     "100.00",
		Quantity:  5,
		OrderType: "Limit",
		UserID:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.ResultID)
	assert.Equal(t, uint64(0), result.RemainingQuantity)
}

func TestSubmitRejectsUnknownSymbol(t *testing.T) {
	b := broker.NewMemoryBroker()
	in := New(b, testMatchingConfig(), nil, nil)

	_, err := in.Submit(context.Background(), SubmissionRequest{
		Symbol: "DOGEUSD", Side: "Buy", Price: "1.00", Quantity: 1, OrderType: "Limit",
	})
	assert.Error(t, err)
}

func TestSubmitRejectsZeroQuantity(t *testing.T) {
	b := broker.NewMemoryBroker()
	in := New(b, testMatchingConfig(), nil, nil)

	_, err := in.Submit(context.Background(), SubmissionRequest{
		Symbol: "BTCUSD", Side: "Buy", Price: "100.00", Quantity: 0, OrderType: "Limit",
	})
	assert.Error(t, err)
}

func TestSubmitTimesOutWithNoWorker(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	cfg.ResponseDeadline = 50 * time.Millisecond
	in := New(b, cfg, nil, nil)

	_, err := in.Submit(context.Background(), SubmissionRequest{
		Symbol: "BTCUSD", Side: "Buy", Price: "100.00", Quantity: 1, OrderType: "Limit",
	})
	assert.Error(t, err)
}

func TestSubmitSurfacesWorkerError(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)

	go func() {
		ctx := context.Background()
		payload, err := b.Pop(ctx, cfg.OrderQueue)
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		out, err := json.Marshal(ErrorResult{Error: "invalid symbol", ResultID: 0})
		require.NoError(t, err)
		require.NoError(t, b.Publish(ctx, cfg.ResponseTopicPrefix+env.RequestID, out))
	}()

	_, err := in.Submit(context.Background(), SubmissionRequest{
		Symbol: "BTCUSD", Side: "Buy", Price: "100.00", Quantity: 1, OrderType: "Limit",
	})
	assert.Error(t, err)
}

// fakeOrderbookWorker pops exactly one orderbook query off the query
// queue and publishes a canned result, simulating the worker's
// RunQueries loop.
func fakeOrderbookWorker(t *testing.T, b broker.Broker, cfg config.MatchingConfig, result OrderbookQueryResult) {
	t.Helper()
	ctx := context.Background()
	payload, err := b.Pop(ctx, cfg.OrderbookQueryQueue)
	require.NoError(t, err)

	var env OrderbookQueryEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))
	result.Symbol = env.Symbol

	out, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, cfg.ResponseTopicPrefix+env.RequestID, out))
}

func TestQueryOrderbookRoundTrip(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)

	go fakeOrderbookWorker(t, b, cfg, OrderbookQueryResult{
		Bids: []LevelWire{{Price: "100000.00", Quantity: 3}},
	})

	result, err := in.QueryOrderbook(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", result.Symbol)
	assert.Len(t, result.Bids, 1)
}

func TestQueryOrderbookSurfacesWorkerError(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)

	go fakeOrderbookWorker(t, b, cfg, OrderbookQueryResult{Error: "invalid symbol"})

	_, err := in.QueryOrderbook(context.Background(), "BTCUSD")
	assert.Error(t, err)
}

func TestQueryOrderbookTimesOutWithNoWorker(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	cfg.ResponseDeadline = 50 * time.Millisecond
	in := New(b, cfg, nil, nil)

	_, err := in.QueryOrderbook(context.Background(), "BTCUSD")
	assert.Error(t, err)
}

func TestParsePriceTruncatesToCents(t *testing.T) {
	p, err := ParsePrice("19.104")
	require.NoError(t, err)
	assert.Equal(t, uint64(1910), uint64(p))
}

func TestParsePriceFromJSONNumber(t *testing.T) {
	p, err := ParsePrice(100.5)
	require.NoError(t, err)
	assert.Equal(t, uint64(10050), uint64(p))
}

func TestParsePriceRejectsNegative(t *testing.T) {
	_, err := ParsePrice("-1.00")
	assert.Error(t, err)
}
