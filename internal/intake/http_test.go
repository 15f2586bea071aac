package intake

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSubmitOrderSuccess(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	go fakeWorker(t, b, cfg, Result{RemainingQuantity: 1})

	body, _ := json.Marshal(SubmissionRequest{
		Symbol: "BTCUSD", Side: "Buy", Price: "100000.00", Quantity: 1, OrderType: "Limit", UserID: 1,
	})
	req := httptest.NewRequest("POST", "/order", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "True", resp.Success)
	assert.Equal(t, uint64(1), resp.OrderID)
}

func TestHandleSubmitOrderMalformedBody(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	req := httptest.NewRequest("POST", "/order", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 500, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestHandleSubmitOrderTimesOut(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	cfg.ResponseDeadline = 50 * time.Millisecond
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	body, _ := json.Marshal(SubmissionRequest{
		Symbol: "BTCUSD", Side: "Buy", Price: "100000.00", Quantity: 1, OrderType: "Limit",
	})
	req := httptest.NewRequest("POST", "/order", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 500, rec.Code)
}

func TestHandleGetOrderbook(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	go fakeOrderbookWorker(t, b, cfg, OrderbookQueryResult{
		Bids: []LevelWire{{Price: "100000.00", Quantity: 3}},
	})

	req := httptest.NewRequest("GET", "/orderbook/BTCUSD", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BTCUSD", body["symbol"])
}

func TestHandleGetOrderbookUnknownSymbol(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	req := httptest.NewRequest("GET", "/orderbook/DOGEUSD", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestHandleGetOrderbookWorkerUnavailable(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	cfg.ResponseDeadline = 50 * time.Millisecond
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	req := httptest.NewRequest("GET", "/orderbook/BTCUSD", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 500, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	b := broker.NewMemoryBroker()
	cfg := testMatchingConfig()
	in := New(b, cfg, nil, nil)
	srv := NewServer(in, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
