// Command exchange-gateway runs the streaming market-data WebSocket
// gateway, spec.md §4.G.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-agentic-browser/exchange/internal/broker"
	"github.com/ai-agentic-browser/exchange/internal/config"
	"github.com/ai-agentic-browser/exchange/internal/gateway"
	"github.com/ai-agentic-browser/exchange/internal/intake"
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

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName:    cfg.Observability.ServiceName + "-gateway",
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

	queries := intake.New(b, cfg.Matching, logger, metrics)
	gw := gateway.New(b, queries, cfg.Gateway, logger, metrics)

	go func() {
		if err := gw.Run(ctx); err != nil {
			logger.Info(ctx, "gateway market-update subscription stopped", map[string]interface{}{"reason": err.Error()})
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Gateway.Host + ":" + cfg.Gateway.Port,
		Handler:      mux,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "exchange-gateway listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "gateway http server stopped", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
