// Package otel provides OpenTelemetry metrics integration for the agent.
package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "nexusagent",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics functionality with agent-specific helpers.
type Metrics struct {
	config            *MetricsConfig
	meterProvider     *sdkmetric.MeterProvider
	meter             metric.Meter
	shutdown          func(context.Context) error
	mu                sync.RWMutex
	slotCountFunc     func() int64
	slotCountGauge    metric.Int64ObservableGauge
	slotCountGaugeReg metric.Registration

	// Metric instruments
	rpcLatency     metric.Float64Histogram
	errorCounter   metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
	watchdogReaped metric.Int64Counter
	unknownMethod  metric.Int64Counter
}

// globalMetrics is the singleton metrics instance.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// Use no-op meter when disabled
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	// Create exporter based on type
	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	// Create resource with service information
	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	// Create meter provider
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	// Register metric instruments
	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// createResource creates the OpenTelemetry resource with service information.
func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	// Add custom attributes
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	// RPC latency histogram (in milliseconds)
	m.rpcLatency, err = m.meter.Float64Histogram(
		"nexusagent.rpc.latency",
		metric.WithDescription("Latency of dispatched JSON-RPC calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rpc latency histogram: %w", err)
	}

	// Error counter with category attribute
	m.errorCounter, err = m.meter.Int64Counter(
		"nexusagent.errors",
		metric.WithDescription("Count of errors by category"),
	)
	if err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	// Active sessions gauge (up/down counter)
	m.activeSessions, err = m.meter.Int64UpDownCounter(
		"nexusagent.sessions.active",
		metric.WithDescription("Number of active paired sessions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active sessions counter: %w", err)
	}

	// Watchdog-reaped session counter
	m.watchdogReaped, err = m.meter.Int64Counter(
		"nexusagent.watchdog.reaped",
		metric.WithDescription("Count of sessions reaped by the watchdog"),
	)
	if err != nil {
		return fmt.Errorf("failed to create watchdog reaped counter: %w", err)
	}

	// Unknown method counter
	m.unknownMethod, err = m.meter.Int64Counter(
		"nexusagent.unknown_method",
		metric.WithDescription("Count of dispatched calls to unregistered methods"),
	)
	if err != nil {
		return fmt.Errorf("failed to create unknown method counter: %w", err)
	}

	// Live slot count observable gauge
	m.slotCountGauge, err = m.meter.Int64ObservableGauge(
		"nexusagent.slots.live",
		metric.WithDescription("Current number of live pairing slots"),
	)
	if err != nil {
		return fmt.Errorf("failed to create slot count gauge: %w", err)
	}

	// Register callback for slot count gauge
	m.slotCountGaugeReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			m.mu.RLock()
			fn := m.slotCountFunc
			m.mu.RUnlock()
			if fn == nil {
				return nil
			}
			o.ObserveInt64(m.slotCountGauge, fn())
			return nil
		},
		m.slotCountGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register slot count gauge callback: %w", err)
	}

	return nil
}

// RecordRPCLatency records the latency of a dispatched JSON-RPC method call.
func (m *Metrics) RecordRPCLatency(ctx context.Context, method string, latencyMs float64, success bool) {
	if m.rpcLatency == nil {
		return
	}

	m.rpcLatency.Record(ctx, latencyMs, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	))
}

// RecordError records an error with the specified category.
func (m *Metrics) RecordError(ctx context.Context, category string) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// IncrementSessions increments the active sessions counter.
func (m *Metrics) IncrementSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, 1)
}

// DecrementSessions decrements the active sessions counter.
func (m *Metrics) DecrementSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, -1)
}

// RecordWatchdogReaped increments the watchdog-reaped counter.
func (m *Metrics) RecordWatchdogReaped(ctx context.Context) {
	if m.watchdogReaped == nil {
		return
	}

	m.watchdogReaped.Add(ctx, 1)
}

// RecordUnknownMethod increments the unknown-method counter.
func (m *Metrics) RecordUnknownMethod(ctx context.Context) {
	if m.unknownMethod == nil {
		return
	}

	m.unknownMethod.Add(ctx, 1)
}

// SetSlotCountFunc registers the callback the live-slot-count observable
// gauge polls. Typically wired to dispatcher.SlotTable.Count.
func (m *Metrics) SetSlotCountFunc(fn func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotCountFunc = fn
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Unregister callback if registered
	if m.slotCountGaugeReg != nil {
		if err := m.slotCountGaugeReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister slot count callback: %w", err)
		}
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// SetGlobalMetrics sets the global metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m

	if m != nil && m.Enabled() {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// GetGlobalMetrics returns the global metrics instance.
// Returns a no-op metrics instance if none has been set.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		// Return a no-op metrics instance
		cfg := DefaultMetricsConfig()
		m := &Metrics{
			config:        cfg,
			meterProvider: sdkmetric.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		return m
	}

	return globalMetrics
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
