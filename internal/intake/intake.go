package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
	"github.com/google/uuid"
)

// Intake validates an HTTP submission, hands it to the broker's work
// queue, and blocks for the matching worker's response, per spec.md §4.E.
type Intake struct {
	broker  broker.Broker
	cfg     config.MatchingConfig
	logger  *observability.Logger
	metrics *observability.MetricsProvider
}

// New builds an Intake bound to broker b.
func New(b broker.Broker, cfg config.MatchingConfig, logger *observability.Logger, metrics *observability.MetricsProvider) *Intake {
	return &Intake{broker: b, cfg: cfg, logger: logger, metrics: metrics}
}

// Submit validates req, enqueues it, and waits for the matching worker's
// response. The subscription to the response topic is opened before the
// envelope is pushed onto the work queue — required so a worker that
// matches and publishes before this call reaches the blocking receive
// cannot produce a lost response (spec.md §9).
func (in *Intake) Submit(ctx context.Context, req SubmissionRequest) (*Result, error) {
	symbol, err := domain.ParseSymbol(req.Symbol)
	if err != nil {
		in.recordRejected(ctx, "unknown_symbol")
		return nil, fmt.Errorf("unknown symbol: %w", err)
	}
	if _, err := domain.ParseSide(req.Side); err != nil {
		in.recordRejected(ctx, "malformed")
		return nil, fmt.Errorf("invalid side: %w", err)
	}
	if _, err := domain.ParseOrderType(req.OrderType); err != nil {
		in.recordRejected(ctx, "malformed")
		return nil, fmt.Errorf("invalid order_type: %w", err)
	}
	if req.Quantity == 0 {
		in.recordRejected(ctx, "non_positive_quantity")
		return nil, fmt.Errorf("quantity must be positive")
	}
	price, err := ParsePrice(req.Price)
	if err != nil {
		in.recordRejected(ctx, "malformed")
		return nil, fmt.Errorf("invalid price: %w", err)
	}

	requestID := uuid.New().String()
	responseTopic := in.cfg.ResponseTopicPrefix + requestID

	sub, err := in.broker.Subscribe(ctx, responseTopic)
	if err != nil {
		in.recordRejected(ctx, "broker_unavailable")
		return nil, fmt.Errorf("subscribe to %s: %w", responseTopic, err)
	}
	defer sub.Close()

	envelope := Envelope{
		Symbol:    string(symbol),
		Side:      req.Side,
		Price:     FormatPrice(price),
		Quantity:  req.Quantity,
		OrderType: req.OrderType,
		UserID:    req.UserID,
		RequestID: requestID,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		in.recordRejected(ctx, "malformed")
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	if err := in.broker.Push(ctx, in.cfg.OrderQueue, payload); err != nil {
		in.recordRejected(ctx, "broker_unavailable")
		return nil, fmt.Errorf("push to %s: %w", in.cfg.OrderQueue, err)
	}
	if in.metrics != nil {
		in.metrics.IncrementQueueDepth(ctx)
		in.metrics.RecordOrderSubmitted(ctx, string(symbol))
	}

	waitCtx, cancel := context.WithTimeout(ctx, in.cfg.ResponseDeadline)
	defer cancel()

	msg, err := sub.Receive(waitCtx)
	if err != nil {
		in.recordRejected(ctx, "response_timeout")
		return nil, fmt.Errorf("waiting for response on %s: %w", responseTopic, err)
	}

	var errResult ErrorResult
	if err := json.Unmarshal(msg.Payload, &errResult); err == nil && errResult.Error != "" {
		in.recordRejected(ctx, "worker_error")
		return nil, fmt.Errorf("worker error: %s", errResult.Error)
	}

	var result Result
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if in.logger != nil {
		in.logger.Info(ctx, "order processed", map[string]interface{}{
			"request_id":         requestID,
			"symbol":             string(symbol),
			"result_id":          result.ResultID,
			"trades":             len(result.Trades),
			"remaining_quantity": result.RemainingQuantity,
		})
	}

	return &result, nil
}

// QueryOrderbook round-trips a read-only depth/top-of-book request to the
// worker over the orderbook-query queue, the same subscribe-before-push
// pattern Submit uses. The worker holds the only live *registry.Registry
// (it is the sole writer, per spec.md §5); this is how every other
// process — the HTTP API's GET /orderbook/{symbol} and the gateway's
// snapshot/depth lookups — reads that state instead of keeping a second,
// unwired local registry that would never observe a fill.
func (in *Intake) QueryOrderbook(ctx context.Context, symbol domain.Symbol) (*OrderbookQueryResult, error) {
	requestID := uuid.New().String()
	responseTopic := in.cfg.ResponseTopicPrefix + requestID

	sub, err := in.broker.Subscribe(ctx, responseTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", responseTopic, err)
	}
	defer sub.Close()

	envelope := OrderbookQueryEnvelope{RequestID: requestID, Symbol: string(symbol)}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal orderbook query: %w", err)
	}
	if err := in.broker.Push(ctx, in.cfg.OrderbookQueryQueue, payload); err != nil {
		return nil, fmt.Errorf("push to %s: %w", in.cfg.OrderbookQueryQueue, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, in.cfg.ResponseDeadline)
	defer cancel()

	msg, err := sub.Receive(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("waiting for response on %s: %w", responseTopic, err)
	}

	var result OrderbookQueryResult
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode orderbook query response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("orderbook query failed: %s", result.Error)
	}
	return &result, nil
}

func (in *Intake) recordRejected(ctx context.Context, reason string) {
	if in.metrics != nil {
		in.metrics.RecordOrderRejected(ctx, reason)
	}
}
