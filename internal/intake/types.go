// Package intake implements order submission: validating, enveloping, and
// round-tripping an order through the broker's queue/response fabric, per
// spec.md §4.E and §6.
package intake

import (
	"fmt"

	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/shopspring/decimal"
)

// SubmissionRequest is the HTTP POST /order JSON body, spec.md §6.
type SubmissionRequest struct {
	Symbol    string      `json:"symbol"`
	Side      string      `json:"side"`
	Price     interface{} `json:"price"`
	Quantity  uint64      `json:"quantity"`
	OrderType string      `json:"order_type"`
	UserID    uint64      `json:"user_id"`
}

// Envelope is the work-queue payload: the submission augmented with a
// request_id, exactly matching spec.md §6's "Work envelope".
type Envelope struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Quantity  uint64 `json:"quantity"`
	OrderType string `json:"order_type"`
	UserID    uint64 `json:"user_id"`
	RequestID string `json:"request_id"`
}

// TradeWire is a single fill, shaped like the response envelope's trades
// entries (spec.md §6: "trades":[<Order>...]) — same field set as a
// resting order, since a Trade is emitted in Order shape in this wire
// contract.
type TradeWire struct {
	ID        uint64 `json:"id"`
	Price     string `json:"price"`
	Qty       uint64 `json:"qty"`
	IsBuy     bool   `json:"is_buy"`
	OrderType string `json:"order_type"`
	Time      string `json:"time"`
}

// Result is the response envelope published to response:{request_id}.
type Result struct {
	ResultID          uint64      `json:"result_id"`
	Trades            []TradeWire `json:"trades"`
	RemainingQuantity uint64      `json:"remaining_quantity"`
	CurrentPrice      *string     `json:"current_price"`
	BestBid           *string     `json:"best_bid"`
	BestAsk           *string     `json:"best_ask"`
}

// ErrorResult is the error variant of the response envelope.
type ErrorResult struct {
	Error    string `json:"error"`
	ResultID uint64 `json:"result_id"`
}

// MarketTradeWire is a single fill as carried on the market_updates topic —
// a distinct, more descriptive shape from TradeWire (quantity/timestamp/side
// instead of qty/time/is_buy), per spec.md §6.
type MarketTradeWire struct {
	ID        uint64 `json:"id"`
	Price     string `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
	Side      string `json:"side"`
}

// MarketUpdate is the broadcast envelope published to market_updates,
// emitted only when a match produced at least one trade.
type MarketUpdate struct {
	Symbol       string            `json:"symbol"`
	Trades       []MarketTradeWire `json:"trades"`
	CurrentPrice string            `json:"current_price"`
	BestBid      string            `json:"best_bid"`
	BestAsk      string            `json:"best_ask"`
	Timestamp    int64             `json:"timestamp"`
}

// SuccessResponse is the HTTP 200 body for POST /order, spec.md §6.
type SuccessResponse struct {
	Success string `json:"success"`
	OrderID uint64 `json:"order_id"`
}

// LevelWire is one aggregated depth level on the wire.
type LevelWire struct {
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// OrderbookQueryEnvelope is the work-queue payload pushed onto the
// orderbook-query queue by anything that needs a read-only view of a
// symbol's book — the API's GET /orderbook/{symbol} and the gateway's
// orderbook_snapshot/orderbook_update depth lookups. The worker is the
// only process holding the live *registry.Registry (it is the sole
// writer, per spec.md §5), so readers round-trip through the broker
// instead of keeping their own, permanently-stale copy of the registry.
type OrderbookQueryEnvelope struct {
	RequestID string `json:"request_id"`
	Symbol    string `json:"symbol"`
}

// OrderbookQueryResult is the response published to
// response:{request_id} for an OrderbookQueryEnvelope.
type OrderbookQueryResult struct {
	Symbol         string      `json:"symbol"`
	CurrentPrice   *string     `json:"current_price"`
	LastTradePrice *string     `json:"last_trade_price"`
	BestBid        *string     `json:"best_bid"`
	BestAsk        *string     `json:"best_ask"`
	Bids           []LevelWire `json:"bids"`
	Asks           []LevelWire `json:"asks"`
	Error          string      `json:"error,omitempty"`
}

// ParsePrice converts the wire price (a JSON number or numeric string) to
// cents, using shopspring/decimal rather than a float64 multiply so a
// value like 19.1 converts exactly instead of drifting — see SPEC_FULL.md
// §3. Any fraction beyond two decimal digits is truncated, matching the
// reference's `price * 100.0 as u64` truncation behavior on two-decimal
// inputs.
func ParsePrice(wire interface{}) (domain.Price, error) {
	var d decimal.Decimal
	switch v := wire.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q: %w", v, err)
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return 0, fmt.Errorf("unsupported price type %T", wire)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("price must be non-negative")
	}
	cents := d.Mul(decimal.NewFromInt(100)).Truncate(0)
	return domain.Price(cents.IntPart()), nil
}

// FormatPrice renders cents back to the wire's two-decimal-digit form.
func FormatPrice(p domain.Price) string {
	return decimal.New(int64(p), -2).StringFixed(2)
}
