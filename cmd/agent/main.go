// Command agent runs the nexus remote agent: it listens for paired
// comm/data TCP connections, dispatches JSON-RPC calls against a
// configured data source, and serves a small operator-facing admin API
// alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/adminapi"
	"github.com/apollo3zehn/nexus-remote-agent/internal/config"
	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/dispatcher"
	"github.com/apollo3zehn/nexus-remote-agent/internal/events"
	"github.com/apollo3zehn/nexus-remote-agent/internal/extension"
	"github.com/apollo3zehn/nexus-remote-agent/internal/extension/localfiles"
	"github.com/apollo3zehn/nexus-remote-agent/internal/metrics"
	"github.com/apollo3zehn/nexus-remote-agent/internal/otel"
	"github.com/apollo3zehn/nexus-remote-agent/internal/packages"
)

func main() {
	opts := config.DefaultOptions()

	listenAddress := flag.String("listen-address", opts.ListenAddress, "address the JSON-RPC dispatcher listens on")
	listenPort := flag.Int("listen-port", opts.ListenPort, "port the JSON-RPC dispatcher listens on")
	adminAddress := flag.String("admin-address", "127.0.0.1:56146", "address the admin HTTP API listens on")
	configDir := flag.String("config-dir", opts.ConfigDir, "directory holding packages.json and other agent configuration")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	events.SetGlobalEventLogger(events.NewEventLogger(instanceID()))

	registry := extension.NewRegistry()
	registry.MustRegister("local-files", localfiles.New)

	store, err := packages.NewStore(*configDir)
	if err != nil {
		logger.Error("failed to open package reference store", "error", err)
		os.Exit(1)
	}

	listenAddr := net.JoinHostPort(*listenAddress, fmt.Sprintf("%d", *listenPort))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Error("failed to bind dispatcher listener", "address", listenAddr, "error", err)
		os.Exit(1)
	}

	disp := dispatcher.New(listener, configuredSourceFactory(registry, store, logger), logger)
	watchdog := dispatcher.NewWatchdog(disp, logger)

	slotTracker := metrics.NewSlotTracker()
	disp.SetSlotTracker(slotTracker)
	collector := metrics.NewCollector(slotTracker)

	adminServer := adminapi.NewServer(*adminAddress, store, registry)
	adminServer.SetMetricsExposer(collector)

	tracer, err := otel.NewTracer(context.Background(), otel.DefaultConfig())
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	otel.SetGlobalTracer(tracer)

	otelMetrics, err := otel.NewMetrics(context.Background(), otel.DefaultMetricsConfig())
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	otelMetrics.SetSlotCountFunc(func() int64 { return int64(disp.Slots().Count()) })
	otel.SetGlobalMetrics(otelMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := adminServer.Start(); err != nil {
		logger.Error("failed to start admin API", "error", err)
		os.Exit(1)
	}

	watchdog.Start()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- disp.Serve(ctx)
	}()

	logger.Info("agent started", "listen_address", listenAddr, "admin_address", adminServer.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("dispatcher stopped unexpectedly", "error", err)
		}
	}

	watchdog.Stop()
	disp.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin API shutdown error", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown error", "error", err)
	}
	if err := otelMetrics.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown error", "error", err)
	}

	logger.Info("agent stopped")
}

// configuredSourceFactory resolves the provider type to instantiate for
// each new paired session: the first package reference in the store if one
// has been registered through the admin API, falling back to the built-in
// local-files provider so the agent is usable out of the box.
func configuredSourceFactory(registry *extension.Registry, store *packages.Store, logger *slog.Logger) dispatcher.SourceFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func() (datasource.DataSource, error) {
		provider := "local-files"
		if refs := store.List(); len(refs) > 0 {
			provider = refs[0].Provider
		}

		factory, ok := registry.Get(provider)
		if !ok {
			return nil, fmt.Errorf("no extension registered for provider type %q", provider)
		}
		logger.Debug("resolved data source provider for new session", "provider", provider)
		return factory()
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "nexusagent"
	}
	return host
}
