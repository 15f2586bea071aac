// Package domain holds the core price/quantity/order primitives shared by
// the book, registry, intake and worker packages.
package domain

import (
	"fmt"
	"time"
)

// Price is a non-negative fixed-point integer: the wire decimal multiplied
// by 100 and truncated ("cents"). All book comparisons use this form.
type Price uint64

// Quantity is the remaining size of an order. Zero means fully filled.
type Quantity uint64

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// ParseSide accepts the wire values "Buy"/"Sell".
func ParseSide(s string) (Side, error) {
	switch s {
	case "Buy":
		return Buy, nil
	case "Sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// OrderType distinguishes resting limit orders from immediate-or-discard
// market orders.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "Limit"
	}
	return "Market"
}

// ParseOrderType accepts the wire values "Limit"/"Market".
func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "Limit":
		return Limit, nil
	case "Market":
		return Market, nil
	default:
		return 0, fmt.Errorf("unknown order_type %q", s)
	}
}

// Symbol is a closed enumeration of tradable instruments. Unknown symbols
// are rejected at intake.
type Symbol string

const (
	BTCUSD Symbol = "BTCUSD"
	ETHUSD Symbol = "ETHUSD"
	SOLUSD Symbol = "SOLUSD"
)

// Symbols lists every tradable instrument, in registry seeding order.
var Symbols = []Symbol{BTCUSD, ETHUSD, SOLUSD}

// ParseSymbol rejects anything outside the reference instrument set.
func ParseSymbol(s string) (Symbol, error) {
	switch Symbol(s) {
	case BTCUSD, ETHUSD, SOLUSD:
		return Symbol(s), nil
	default:
		return "", fmt.Errorf("unknown symbol %q", s)
	}
}

// Order is both the incoming submission and a resting book entry once
// placed; Quantity tracks the remaining (unfilled) size.
type Order struct {
	ID        uint64
	Symbol    Symbol
	Price     Price
	Qty       Quantity
	IsBuy     bool
	OrderType OrderType
	Time      time.Time
}

func (o Order) String() string {
	return fmt.Sprintf("Order{id:%d sym:%s price:%d qty:%d buy:%t type:%s time:%s}",
		o.ID, o.Symbol, o.Price, o.Qty, o.IsBuy, o.OrderType, o.Time.Format(time.RFC3339Nano))
}

// Trade records one match between a taker and a single resting order.
//
// IsBuy denotes the side of the resting (maker) order, not the taker that
// triggered the match — a confusing but reference-faithful convention; see
// SPEC_FULL.md §9.
type Trade struct {
	ID    uint64 // id of the resting counterparty order
	Price Price  // resting order's price (maker price)
	Qty   Quantity
	IsBuy bool
	Time  time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{id:%d price:%d qty:%d buy:%t time:%s}",
		t.ID, t.Price, t.Qty, t.IsBuy, t.Time.Format(time.RFC3339Nano))
}
