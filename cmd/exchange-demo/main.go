// Command exchange-demo wires the matching core end to end over
// internal/broker.MemoryBroker, with no Redis dependency, so the whole
// submit -> queue -> match -> respond -> broadcast path can be exercised
// from a single process. Useful for local smoke-testing and as a
// runnable example of the wiring cmd/exchange-api/-worker/-gateway split
// across three processes.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/intake"
	"github.com/ai-agentic-browser/exchange/internal/registry"
	"github.com/ai-agentic-browser/exchange/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.MatchingConfig{
		OrderQueue:          "order",
		ResponseTopicPrefix: "response:",
		MarketUpdatesTopic:  "market_updates",
		ResponseDeadline:    2 * time.Second,
		WorkerRetryDelay:    time.Second,
	}

	b := broker.NewMemoryBroker()
	reg := registry.New(registry.DefaultSeeds)

	w := worker.New(b, reg, cfg, nil, nil, nil)
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Printf("worker stopped: %v", err)
		}
	}()

	marketUpdates, err := b.Subscribe(ctx, cfg.MarketUpdatesTopic)
	if err != nil {
		log.Fatalf("subscribe market_updates: %v", err)
	}
	go func() {
		for {
			msg, err := marketUpdates.Receive(ctx)
			if err != nil {
				return
			}
			fmt.Printf("[market_updates] %s\n", msg.Payload)
		}
	}()

	in := intake.New(b, cfg, nil, nil)

	orders := []intake.SubmissionRequest{
		{Symbol: "BTCUSD", Side: "Sell", Price: "100050.00", Quantity: 2, OrderType: "Limit", UserID: 1},
		{Symbol: "BTCUSD", Side: "Buy", Price: "100050.00", Quantity: 1, OrderType: "Limit", UserID: 2},
		{Symbol: "BTCUSD", Side: "Buy", Price: "100050.00", Quantity: 5, OrderType: "Market", UserID: 3},
	}

	for i, req := range orders {
		result, err := in.Submit(ctx, req)
		if err != nil {
			log.Printf("order %d rejected: %v", i, err)
			continue
		}
		fmt.Printf("order %d filled: order_id=%d trades=%d remaining=%d\n",
			i, result.ResultID, len(result.Trades), result.RemainingQuantity)
	}

	time.Sleep(100 * time.Millisecond)
}
