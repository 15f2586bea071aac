// Command exchange-api runs the HTTP order-intake listener: POST /order,
// GET /orderbook/{symbol}, GET /health, spec.md §4.E.
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
	"github.com/ai-agentic-browser/exchange/internal/intake"
	"github.com/ai-agentic-browser/exchange/pkg/observability"
	"github.com/rs/cors"
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
		ServiceName:    cfg.Observability.ServiceName,
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

	in := intake.New(b, cfg.Matching, logger, metrics)
	apiServer := intake.NewServer(in, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(apiServer.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "exchange-api listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http server stopped", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
