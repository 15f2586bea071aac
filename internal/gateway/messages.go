package gateway

// ClientCommand is an inbound client->server frame, spec.md §6: subscribe,
// unsubscribe, get_orderbook, ping.
type ClientCommand struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

type levelWire struct {
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
}

type welcomeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type subscriptionConfirmedMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type unsubscribeConfirmedMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type tradeWire struct {
	ID        uint64 `json:"id"`
	Price     string `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
	Side      string `json:"side"`
}

// orderbookSnapshotMessage answers a get_orderbook command with the full
// current book state plus depth, per original_source's
// get_full_orderbook_snapshot.
type orderbookSnapshotMessage struct {
	Type           string      `json:"type"`
	Symbol         string      `json:"symbol"`
	CurrentPrice   *string     `json:"current_price"`
	LastTradePrice *string     `json:"last_trade_price"`
	BestBid        *string     `json:"best_bid"`
	BestAsk        *string     `json:"best_ask"`
	Bids           []levelWire `json:"bids"`
	Asks           []levelWire `json:"asks"`
	Timestamp      int64       `json:"timestamp"`
}

// orderbookUpdateMessage is forwarded to every client subscribed to
// Symbol when a market_updates broadcast carries at least one trade,
// enriched with the current depth snapshot the same way
// original_source's websocket.rs does via get_orderbook_with_trades.
type orderbookUpdateMessage struct {
	Type         string      `json:"type"`
	Symbol       string      `json:"symbol"`
	Trades       []tradeWire `json:"trades"`
	CurrentPrice string      `json:"current_price"`
	BestBid      string      `json:"best_bid"`
	BestAsk      string      `json:"best_ask"`
	Bids         []levelWire `json:"bids"`
	Asks         []levelWire `json:"asks"`
	Timestamp    int64       `json:"timestamp"`
}

type pongMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
