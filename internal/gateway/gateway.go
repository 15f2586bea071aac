// Package gateway implements the streaming market-data WebSocket gateway:
// it subscribes to the broker's market_updates topic and fans matched
// trades and book snapshots out to subscribed clients, per spec.md §4.G
// and the wire protocol of §6. Ported from original_source's
// bin/websocket.rs into the teacher's client-registry + broadcast-hub
// shape (wsClients / handleWebSocketHub).
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/domain"
	"github.com/ai-agentic-browser/exchange/internal/intake"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
	"github.com/gorilla/websocket"
)

// Gateway holds the client registry and the shared subscription to
// market_updates. Depth/snapshot reads go through queries, which
// round-trips through the broker to the worker — the sole holder of the
// live *registry.Registry (spec.md §5) — rather than keeping a second,
// unwired local registry copy that would never observe a fill.
type Gateway struct {
	broker  broker.Broker
	queries *intake.Intake
	cfg     config.GatewayConfig
	logger  *observability.Logger
	metrics *observability.MetricsProvider

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New builds a Gateway bound to broker b, issuing orderbook queries
// through queries.
func New(b broker.Broker, queries *intake.Intake, cfg config.GatewayConfig, logger *observability.Logger, metrics *observability.MetricsProvider) *Gateway {
	return &Gateway{
		broker:  b,
		queries: queries,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// client is one connected WebSocket subscriber.
type client struct {
	conn          *websocket.Conn
	send          chan []byte
	mu            sync.Mutex
	subscriptions map[domain.Symbol]bool
}

func (c *client) isSubscribed(symbol domain.Symbol) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[symbol]
}

func (c *client) subscribe(symbol domain.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[symbol] = true
}

func (c *client) unsubscribe(symbol domain.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, symbol)
}

// Run subscribes to market_updates and forwards each update to every
// subscribed client until ctx is canceled. Run one instance of this per
// Gateway process.
func (g *Gateway) Run(ctx context.Context) error {
	sub, err := g.broker.Subscribe(ctx, "market_updates")
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		g.handleMarketUpdate(ctx, msg.Payload)
	}
}

func (g *Gateway) handleMarketUpdate(ctx context.Context, payload []byte) {
	var update intake.MarketUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		g.logError(ctx, "decode market update failed", err)
		return
	}
	symbol, err := domain.ParseSymbol(update.Symbol)
	if err != nil {
		g.logError(ctx, "market update with unknown symbol", err)
		return
	}

	depth, err := g.queries.QueryOrderbook(ctx, symbol)
	if err != nil {
		g.logError(ctx, "depth lookup failed for market update", err)
		return
	}

	out := orderbookUpdateMessage{
		Type:         "orderbook_update",
		Symbol:       update.Symbol,
		Trades:       toTradeWire(update.Trades),
		CurrentPrice: update.CurrentPrice,
		BestBid:      update.BestBid,
		BestAsk:      update.BestAsk,
		Bids:         toLevelWire(depth.Bids),
		Asks:         toLevelWire(depth.Asks),
		Timestamp:    time.Now().Unix(),
	}
	payloadOut, err := json.Marshal(out)
	if err != nil {
		g.logError(ctx, "marshal orderbook update failed", err)
		return
	}

	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		if c.isSubscribed(symbol) {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()

	for _, c := range targets {
		c.trySend(payloadOut)
	}
}

// HandleWebSocket upgrades the request and serves one client connection
// until it disconnects.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logError(r.Context(), "websocket upgrade failed", err)
		return
	}

	c := &client{
		conn:          conn,
		send:          make(chan []byte, 64),
		subscriptions: make(map[domain.Symbol]bool),
	}
	g.register(c)
	defer g.unregister(c)

	go g.writePump(c)

	welcome, _ := json.Marshal(welcomeMessage{Type: "welcome", Message: "connected to market data gateway"})
	c.trySend(welcome)

	g.readPump(c)
}

func (g *Gateway) register(c *client) {
	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()

	if g.metrics != nil {
		c.mu.Lock()
		count := len(c.subscriptions)
		c.mu.Unlock()
		for i := 0; i < count; i++ {
			g.metrics.DecrementWSSubscriptions(context.Background())
		}
	}

	close(c.send)
	_ = c.conn.Close()
}

func (g *Gateway) writePump(c *client) {
	for payload := range c.send {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (g *Gateway) readPump(c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			g.sendError(c, "malformed command")
			continue
		}

		switch cmd.Type {
		case "subscribe":
			g.handleSubscribe(c, cmd.Symbol)
		case "unsubscribe":
			g.handleUnsubscribe(c, cmd.Symbol)
		case "get_orderbook":
			g.handleGetOrderbook(c, cmd.Symbol)
		case "ping":
			pong, _ := json.Marshal(pongMessage{Type: "pong"})
			c.trySend(pong)
		default:
			g.sendError(c, "unknown command")
		}
	}
}

func (g *Gateway) handleSubscribe(c *client, symbolStr string) {
	symbol, err := domain.ParseSymbol(symbolStr)
	if err != nil {
		g.sendError(c, "unknown symbol")
		return
	}
	c.subscribe(symbol)
	if g.metrics != nil {
		g.metrics.IncrementWSSubscriptions(context.Background())
	}
	out, _ := json.Marshal(subscriptionConfirmedMessage{Type: "subscription_confirmed", Symbol: symbolStr})
	c.trySend(out)
}

func (g *Gateway) handleUnsubscribe(c *client, symbolStr string) {
	symbol, err := domain.ParseSymbol(symbolStr)
	if err != nil {
		g.sendError(c, "unknown symbol")
		return
	}
	wasSubscribed := c.isSubscribed(symbol)
	c.unsubscribe(symbol)
	if wasSubscribed && g.metrics != nil {
		g.metrics.DecrementWSSubscriptions(context.Background())
	}
	out, _ := json.Marshal(unsubscribeConfirmedMessage{Type: "unsubscribe_confirmed", Symbol: symbolStr})
	c.trySend(out)
}

func (g *Gateway) handleGetOrderbook(c *client, symbolStr string) {
	symbol, err := domain.ParseSymbol(symbolStr)
	if err != nil {
		g.sendError(c, "unknown symbol")
		return
	}

	depth, err := g.queries.QueryOrderbook(context.Background(), symbol)
	if err != nil {
		g.sendError(c, "orderbook query failed")
		return
	}

	out := orderbookSnapshotMessage{
		Type:           "orderbook_snapshot",
		Symbol:         symbolStr,
		CurrentPrice:   depth.CurrentPrice,
		LastTradePrice: depth.LastTradePrice,
		BestBid:        depth.BestBid,
		BestAsk:        depth.BestAsk,
		Bids:           toLevelWire(depth.Bids),
		Asks:           toLevelWire(depth.Asks),
		Timestamp:      time.Now().Unix(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		g.logError(context.Background(), "marshal orderbook snapshot failed", err)
		return
	}
	c.trySend(payload)
}

func (g *Gateway) sendError(c *client, message string) {
	out, _ := json.Marshal(errorMessage{Type: "error", Message: message})
	c.trySend(out)
}

func (c *client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Slow client: drop rather than block the broadcast loop.
	}
}

func (g *Gateway) logError(ctx context.Context, message string, err error) {
	if g.logger == nil {
		return
	}
	g.logger.Error(ctx, message, err)
}

func toLevelWire(levels []intake.LevelWire) []levelWire {
	wire := make([]levelWire, 0, len(levels))
	for _, l := range levels {
		wire = append(wire, levelWire{Price: l.Price, Quantity: l.Quantity})
	}
	return wire
}

func toTradeWire(trades []intake.MarketTradeWire) []tradeWire {
	wire := make([]tradeWire, 0, len(trades))
	for _, t := range trades {
		wire = append(wire, tradeWire{ID: t.ID, Price: t.Price, Quantity: t.Quantity, Timestamp: t.Timestamp, Side: t.Side})
	}
	return wire
}
