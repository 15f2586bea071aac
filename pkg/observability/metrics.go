package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics with a Prometheus exporter,
// exposing the matching pipeline's domain gauges/counters (spec.md
// §9-adjacent ambient observability, SPEC_FULL.md §8).
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	ordersSubmittedTotal metric.Int64Counter
	ordersRejectedTotal  metric.Int64Counter
	tradesTotal          metric.Int64Counter
	matchingDuration     metric.Float64Histogram
	orderQueueDepth      metric.Int64UpDownCounter
	wsSubscriptions      metric.Int64UpDownCounter
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(cfg.ServiceName)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	mp.ordersSubmittedTotal, err = mp.meter.Int64Counter(
		"orders_submitted_total",
		metric.WithDescription("Total number of orders accepted at intake"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create orders_submitted_total counter: %w", err)
	}

	mp.ordersRejectedTotal, err = mp.meter.Int64Counter(
		"orders_rejected_total",
		metric.WithDescription("Total number of orders rejected by intake or the worker"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create orders_rejected_total counter: %w", err)
	}

	mp.tradesTotal, err = mp.meter.Int64Counter(
		"trades_total",
		metric.WithDescription("Total number of trades produced by the matching engine"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create trades_total counter: %w", err)
	}

	mp.matchingDuration, err = mp.meter.Float64Histogram(
		"matching_duration_seconds",
		metric.WithDescription("Time spent inside Registry.Match for one order"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		return fmt.Errorf("create matching_duration_seconds histogram: %w", err)
	}

	mp.orderQueueDepth, err = mp.meter.Int64UpDownCounter(
		"order_queue_depth",
		metric.WithDescription("Approximate depth of the order work queue, incremented at push and decremented at pop"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create order_queue_depth gauge: %w", err)
	}

	mp.wsSubscriptions, err = mp.meter.Int64UpDownCounter(
		"active_websocket_subscriptions",
		metric.WithDescription("Number of active per-symbol gateway subscriptions across all connections"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create active_websocket_subscriptions gauge: %w", err)
	}

	return nil
}

// RecordOrderSubmitted increments orders_submitted_total for symbol.
func (mp *MetricsProvider) RecordOrderSubmitted(ctx context.Context, symbol string) {
	if mp.ordersSubmittedTotal == nil {
		return
	}
	mp.ordersSubmittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
}

// RecordOrderRejected increments orders_rejected_total, tagged with the
// rejection reason (e.g. "malformed", "unknown_symbol", "response_timeout").
func (mp *MetricsProvider) RecordOrderRejected(ctx context.Context, reason string) {
	if mp.ordersRejectedTotal == nil {
		return
	}
	mp.ordersRejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTrades adds count to trades_total for symbol and records the time
// Registry.Match took to produce them.
func (mp *MetricsProvider) RecordTrades(ctx context.Context, symbol string, count int, duration time.Duration) {
	if mp.tradesTotal != nil && count > 0 {
		mp.tradesTotal.Add(ctx, int64(count), metric.WithAttributes(attribute.String("symbol", symbol)))
	}
	if mp.matchingDuration != nil {
		mp.matchingDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("symbol", symbol)))
	}
}

// IncrementQueueDepth and DecrementQueueDepth track order_queue_depth
// around a broker Push/Pop pair.
func (mp *MetricsProvider) IncrementQueueDepth(ctx context.Context) {
	if mp.orderQueueDepth == nil {
		return
	}
	mp.orderQueueDepth.Add(ctx, 1)
}

func (mp *MetricsProvider) DecrementQueueDepth(ctx context.Context) {
	if mp.orderQueueDepth == nil {
		return
	}
	mp.orderQueueDepth.Add(ctx, -1)
}

// IncrementWSSubscriptions and DecrementWSSubscriptions track
// active_websocket_subscriptions around a gateway client's subscribe/
// unsubscribe/disconnect.
func (mp *MetricsProvider) IncrementWSSubscriptions(ctx context.Context) {
	if mp.wsSubscriptions == nil {
		return
	}
	mp.wsSubscriptions.Add(ctx, 1)
}

func (mp *MetricsProvider) DecrementWSSubscriptions(ctx context.Context) {
	if mp.wsSubscriptions == nil {
		return
	}
	mp.wsSubscriptions.Add(ctx, -1)
}

// StartMetricsServer starts the Prometheus /metrics HTTP server.
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider.
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
