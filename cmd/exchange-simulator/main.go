// Command exchange-simulator generates synthetic order flow against a
// running exchange-api instance. Ported from original_source's
// sim/sim.rs + sim/runner.rs (supplementing a feature dropped from
// spec.md's distillation, per SPEC_FULL.md §4.G) — intentionally built
// on the standard library only, since no library in the example pack
// offers synthetic load generation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type symbolState struct {
	name       string
	price      float64
	volatility float64
	frequency  time.Duration
	history    []float64
}

// step advances the symbol's price one tick via a random walk: a small
// drift, Gaussian volatility, and a trend factor derived from the recent
// price history, mirroring OrderSimulator's price generator in
// original_source's sim/sim.rs.
func (s *symbolState) step(rng *rand.Rand) float64 {
	drift := (rng.Float64() - 0.5) * 0.001 * s.price

	trend := 0.0
	if n := len(s.history); n >= 2 {
		trend = (s.history[n-1] - s.history[0]) / float64(n) * 0.1
	}

	shock := rng.NormFloat64() * s.volatility * s.price
	s.price += drift + shock + trend
	if s.price < 1 {
		s.price = 1
	}

	s.history = append(s.history, s.price)
	if len(s.history) > 20 {
		s.history = s.history[1:]
	}
	return s.price
}

// order returns a randomly generated order around the symbol's current
// price: side is a coin flip, the limit price is offset from the mid by
// a small random spread, and quantity is drawn from a tiered
// distribution favoring small sizes.
func (s *symbolState) order(rng *rand.Rand, userID uint64) map[string]interface{} {
	mid := s.step(rng)

	side := "Buy"
	offsetSign := 1.0
	if rng.Float64() < 0.5 {
		side = "Sell"
		offsetSign = -1.0
	}

	spread := mid * 0.0005 * (1 + rng.Float64())
	price := mid + offsetSign*spread

	var qty uint64
	switch roll := rng.Float64(); {
	case roll < 0.7:
		qty = uint64(1 + rng.Intn(5))
	case roll < 0.95:
		qty = uint64(5 + rng.Intn(20))
	default:
		qty = uint64(25 + rng.Intn(100))
	}

	orderType := "Limit"
	if rng.Float64() < 0.1 {
		orderType = "Market"
	}

	return map[string]interface{}{
		"symbol":     s.name,
		"side":       side,
		"price":      fmt.Sprintf("%.2f", price),
		"quantity":   qty,
		"order_type": orderType,
		"user_id":    userID,
	}
}

func main() {
	serverURL := flag.String("server-url", "http://localhost:8080", "exchange-api base URL")
	flag.Parse()

	symbols := []*symbolState{
		{name: "BTCUSD", price: 100000, volatility: 0.002, frequency: 200 * time.Millisecond},
		{name: "ETHUSD", price: 4000, volatility: 0.003, frequency: 300 * time.Millisecond},
		{name: "SOLUSD", price: 170, volatility: 0.005, frequency: 250 * time.Millisecond},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym *symbolState) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i) + time.Now().UnixNano()))
			runSymbol(client, *serverURL, sym, rng)
		}(i, sym)
	}
	wg.Wait()
}

func runSymbol(client *http.Client, serverURL string, sym *symbolState, rng *rand.Rand) {
	userID := uint64(1)
	for {
		jitter := time.Duration(rng.Int63n(int64(sym.frequency)))
		time.Sleep(sym.frequency/2 + jitter)

		order := sym.order(rng, userID)
		userID++

		payload, err := json.Marshal(order)
		if err != nil {
			log.Printf("marshal order: %v", err)
			continue
		}

		resp, err := client.Post(serverURL+"/order", "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("post order: %v", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Printf("order rejected: %s status=%d", sym.name, resp.StatusCode)
		}
	}
}
