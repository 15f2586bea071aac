// Command exchange-worker runs the matching worker: the single consumer
// of the order queue that owns the registry, spec.md §4.H.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/registry"
	"github.com/ai-agentic-browser/exchange/internal/worker"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability)

	tracer, err := observability.NewTracingProvider(cfg.Observability)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    cfg.Observability.ServiceName + "-worker",
		ServiceVersion: "dev",
		Namespace:      "exchange",
		Port:           cfg.Observability.MetricsPort,
		Enabled:        true,
	})
	if err != nil {
		log.Fatalf("init metrics: %v", err)
	}
	go func() {
		if err := metrics.StartMetricsServer(cfg.Observability.MetricsPort); err != nil {
			logger.Warn(ctx, "metrics server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	b, err := broker.NewRedisBroker(broker.RedisConfig{
		URL:          cfg.Redis.URL,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatalf("connect broker: %v", err)
	}
	defer b.Close()

	reg := registry.New(registry.DefaultSeeds)
	w := worker.New(b, reg, cfg.Matching, logger, metrics, tracer)

	go func() {
		logger.Info(ctx, "orderbook query loop starting", map[string]interface{}{"queue": cfg.Matching.OrderbookQueryQueue})
		if err := w.RunQueries(ctx); err != nil {
			logger.Info(ctx, "orderbook query loop stopped", map[string]interface{}{"reason": err.Error()})
		}
	}()

	logger.Info(ctx, "exchange-worker starting", map[string]interface{}{"queue": cfg.Matching.OrderQueue})
	if err := w.Run(ctx); err != nil {
		logger.Info(ctx, "exchange-worker stopped", map[string]interface{}{"reason": err.Error()})
	}
}
