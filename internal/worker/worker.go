// Package worker implements the matching worker: the process that
// dequeues submitted orders, runs them through the registry, and
// publishes the result, per spec.md §4.G/§4.H.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/book"
	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/ai-agentic-browser/exchange/internal/intake"
	"github.com/ai-agentic-browser/exchange/internal/registry"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
)

// Worker runs the single-consumer matching loop against one Registry.
type Worker struct {
	broker   broker.Broker
	registry *registry.Registry
	cfg      config.MatchingConfig
	logger   *observability.Logger
	metrics  *observability.MetricsProvider
	tracer   *observability.TracingProvider
}

// New builds a Worker. tracer may be nil, in which case matching spans are
// skipped and SpanFromContext(ctx) in log lines stays empty.
func New(b broker.Broker, reg *registry.Registry, cfg config.MatchingConfig, logger *observability.Logger, metrics *observability.MetricsProvider, tracer *observability.TracingProvider) *Worker {
	return &Worker{broker: b, registry: reg, cfg: cfg, logger: logger, metrics: metrics, tracer: tracer}
}

// Run dequeues from the order queue until ctx is canceled. It never halts
// on a per-order failure: a submission with an unknown symbol, side, order
// type or price publishes the error response variant and the loop
// continues, per spec.md §7's policy table; a payload that does not decode
// as an envelope is logged and dropped without a response. A broker-level Pop failure backs off for
// cfg.WorkerRetryDelay and retries, mirroring original_source's worker
// retry-after-sleep behavior.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, err := w.broker.Pop(ctx, w.cfg.OrderQueue)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logError(ctx, "broker pop failed, retrying", err, nil)
			select {
			case <-time.After(w.cfg.WorkerRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if w.metrics != nil {
			w.metrics.DecrementQueueDepth(ctx)
		}

		w.processOne(ctx, payload)
	}
}

// RunQueries dequeues from the orderbook-query queue until ctx is
// canceled, answering each request against the same Registry Run
// mutates. Run this alongside Run in its own goroutine — the registry's
// own mutex serializes the two loops' access, per spec.md §5's
// "read-only snapshot callers" contention note.
func (w *Worker) RunQueries(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, err := w.broker.Pop(ctx, w.cfg.OrderbookQueryQueue)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logError(ctx, "orderbook query pop failed, retrying", err, nil)
			select {
			case <-time.After(w.cfg.WorkerRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		w.processQuery(ctx, payload)
	}
}

func (w *Worker) processQuery(ctx context.Context, payload []byte) {
	var env intake.OrderbookQueryEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		w.logError(ctx, "malformed orderbook query, dropping", err, nil)
		return
	}

	fields := map[string]interface{}{"request_id": env.RequestID, "symbol": env.Symbol}

	symbol, err := domain.ParseSymbol(env.Symbol)
	if err != nil {
		w.publishQueryError(ctx, env.RequestID, "Invalid Symbol")
		w.logError(ctx, "orderbook query for unknown symbol", err, fields)
		return
	}

	snap, err := w.registry.Snapshot(symbol)
	if err != nil {
		w.publishQueryError(ctx, env.RequestID, err.Error())
		w.logError(ctx, "snapshot lookup failed for orderbook query", err, fields)
		return
	}
	bids, asks, err := w.registry.Depth(symbol, 10)
	if err != nil {
		w.publishQueryError(ctx, env.RequestID, err.Error())
		w.logError(ctx, "depth lookup failed for orderbook query", err, fields)
		return
	}

	result := intake.OrderbookQueryResult{
		Symbol:         env.Symbol,
		CurrentPrice:   priceString(snap.CurrentPrice),
		LastTradePrice: priceString(snap.LastTradePrice),
		BestBid:        priceString(snap.BestBid),
		BestAsk:        priceString(snap.BestAsk),
		Bids:           toLevelWire(bids),
		Asks:           toLevelWire(asks),
	}
	payloadOut, err := json.Marshal(result)
	if err != nil {
		w.logError(ctx, "marshal orderbook query result failed", err, fields)
		return
	}
	topic := w.cfg.ResponseTopicPrefix + env.RequestID
	if err := w.broker.Publish(ctx, topic, payloadOut); err != nil {
		w.logError(ctx, "publish orderbook query result failed", err, fields)
	}
}

func (w *Worker) publishQueryError(ctx context.Context, requestID, message string) {
	payload, err := json.Marshal(intake.OrderbookQueryResult{Error: message})
	if err != nil {
		return
	}
	topic := w.cfg.ResponseTopicPrefix + requestID
	_ = w.broker.Publish(ctx, topic, payload)
}

func (w *Worker) processOne(ctx context.Context, payload []byte) {
	var env intake.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		w.logError(ctx, "malformed submission, dropping", err, nil)
		return
	}

	fields := map[string]interface{}{"request_id": env.RequestID, "symbol": env.Symbol}

	symbol, err := domain.ParseSymbol(env.Symbol)
	if err != nil {
		w.publishError(ctx, env.RequestID, "Invalid Symbol")
		w.logError(ctx, "unknown symbol", err, fields)
		return
	}
	side, err := domain.ParseSide(env.Side)
	if err != nil {
		w.publishError(ctx, env.RequestID, "Invalid Side")
		w.logError(ctx, "invalid side", err, fields)
		return
	}
	orderType, err := domain.ParseOrderType(env.OrderType)
	if err != nil {
		w.publishError(ctx, env.RequestID, "Invalid OrderType")
		w.logError(ctx, "invalid order_type", err, fields)
		return
	}
	price, err := intake.ParsePrice(env.Price)
	if err != nil {
		w.publishError(ctx, env.RequestID, "Invalid Price")
		w.logError(ctx, "invalid price", err, fields)
		return
	}

	order := &domain.Order{
		ID:        w.registry.NextOrderID(),
		Symbol:    symbol,
		Price:     price,
		Qty:       domain.Quantity(env.Quantity),
		IsBuy:     side == domain.Buy,
		OrderType: orderType,
		Time:      time.Now(),
	}

	ctx, span := w.tracer.StartSpan(ctx, "worker.Match")
	start := time.Now()
	trades, err := w.registry.Match(symbol, order)
	duration := time.Since(start)
	span.End()
	if err != nil {
		w.publishError(ctx, env.RequestID, err.Error())
		w.logError(ctx, "match failed", err, fields)
		return
	}

	if w.metrics != nil {
		w.metrics.RecordTrades(ctx, string(symbol), len(trades), duration)
	}

	var filled domain.Quantity
	for _, tr := range trades {
		filled += tr.Qty
	}
	remaining := order.Qty - filled
	// A limit order that rests in full without trading reports nothing
	// outstanding: its whole quantity is on the book.
	if orderType == domain.Limit && len(trades) == 0 {
		remaining = 0
	}

	snap, err := w.registry.Snapshot(symbol)
	if err != nil {
		w.logError(ctx, "snapshot lookup failed after match", err, fields)
	}

	result := intake.Result{
		ResultID:          order.ID,
		Trades:            toTradeWire(trades),
		RemainingQuantity: uint64(remaining),
		CurrentPrice:      priceString(snap.CurrentPrice),
		BestBid:           priceString(snap.BestBid),
		BestAsk:           priceString(snap.BestAsk),
	}
	// Publishing the response before the broadcast keeps the response
	// visible to the waiting HTTP caller strictly ahead of any gateway
	// subscriber seeing the same fill, per spec.md §5.
	w.publishResult(ctx, env.RequestID, result, fields)

	if len(trades) > 0 {
		w.publishMarketUpdate(ctx, symbol, trades, snap, fields)
	}
}

func (w *Worker) publishResult(ctx context.Context, requestID string, result intake.Result, fields map[string]interface{}) {
	payload, err := json.Marshal(result)
	if err != nil {
		w.logError(ctx, "marshal result failed", err, fields)
		return
	}
	topic := w.cfg.ResponseTopicPrefix + requestID
	if err := w.broker.Publish(ctx, topic, payload); err != nil {
		w.logError(ctx, "publish result failed", err, fields)
	}
}

func (w *Worker) publishError(ctx context.Context, requestID, message string) {
	payload, err := json.Marshal(intake.ErrorResult{Error: message, ResultID: 0})
	if err != nil {
		return
	}
	topic := w.cfg.ResponseTopicPrefix + requestID
	_ = w.broker.Publish(ctx, topic, payload)
	if w.metrics != nil {
		w.metrics.RecordOrderRejected(ctx, "worker_error")
	}
}

func (w *Worker) publishMarketUpdate(ctx context.Context, symbol domain.Symbol, trades []domain.Trade, snap book.Snapshot, fields map[string]interface{}) {
	update := intake.MarketUpdate{
		Symbol:       string(symbol),
		Trades:       toMarketTradeWire(trades),
		CurrentPrice: optionalPriceString(snap.CurrentPrice),
		BestBid:      optionalPriceString(snap.BestBid),
		BestAsk:      optionalPriceString(snap.BestAsk),
		Timestamp:    time.Now().Unix(),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		w.logError(ctx, "marshal market update failed", err, fields)
		return
	}
	if err := w.broker.Publish(ctx, w.cfg.MarketUpdatesTopic, payload); err != nil {
		w.logError(ctx, "publish market update failed", err, fields)
	}
}

func (w *Worker) logError(ctx context.Context, message string, err error, fields map[string]interface{}) {
	if w.logger == nil {
		return
	}
	if fields == nil {
		w.logger.Error(ctx, message, err)
		return
	}
	w.logger.Error(ctx, message, err, fields)
}

func priceString(p *domain.Price) *string {
	if p == nil {
		return nil
	}
	s := intake.FormatPrice(*p)
	return &s
}

func optionalPriceString(p *domain.Price) string {
	if p == nil {
		return ""
	}
	return intake.FormatPrice(*p)
}

func toTradeWire(trades []domain.Trade) []intake.TradeWire {
	wire := make([]intake.TradeWire, 0, len(trades))
	for _, tr := range trades {
		wire = append(wire, intake.TradeWire{
			ID:        tr.ID,
			Price:     intake.FormatPrice(tr.Price),
			Qty:       uint64(tr.Qty),
			IsBuy:     tr.IsBuy,
			OrderType: domain.Limit.String(),
			Time:      tr.Time.Format(time.RFC3339Nano),
		})
	}
	return wire
}

func toLevelWire(levels []book.DepthLevel) []intake.LevelWire {
	wire := make([]intake.LevelWire, 0, len(levels))
	for _, l := range levels {
		wire = append(wire, intake.LevelWire{Price: intake.FormatPrice(l.Price), Quantity: uint64(l.Qty)})
	}
	return wire
}

func toMarketTradeWire(trades []domain.Trade) []intake.MarketTradeWire {
	wire := make([]intake.MarketTradeWire, 0, len(trades))
	for _, tr := range trades {
		side := "Sell"
		if tr.IsBuy {
			side = "Buy"
		}
		wire = append(wire, intake.MarketTradeWire{
			ID:        tr.ID,
			Price:     intake.FormatPrice(tr.Price),
			Quantity:  uint64(tr.Qty),
			Timestamp: tr.Time.Unix(),
			Side:      side,
		})
	}
	return wire
}
