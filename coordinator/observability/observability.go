// Package observability wires structured logging, tracing, and metrics for
// the coordination runtime: a constructor-injected bundle rather than
// package-level globals, with an in-process (no network exporter) tracer
// provider since this runtime does not ship a distributed-tracing backend
// of its own.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the observability bundle a host binary builds once at
// startup and threads through the manager, bus, and registry; the task
// queue and memory pool take only a MetricsManager built from it.
type Config struct {
	ServiceName string
	LogLevel    string
	HealthAddr  string // empty disables the health/metrics HTTP server
}

// Observability bundles a logger, tracer, and meter. It has no network
// exporter wired by default: the tracer provider is process-local, and the
// meter feeds a Prometheus registry served over HTTP when HealthAddr is set.
type Observability struct {
	Config Config
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New builds an Observability bundle. Call Shutdown when the host process
// exits to flush the tracer provider.
func New(cfg Config) (*Observability, error) {
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer := tracerProvider.Tracer(cfg.ServiceName)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	otel.SetMeterProvider(meterProvider)
	meter := meterProvider.Meter(cfg.ServiceName)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})).With("service", cfg.ServiceName)

	return &Observability{
		Config:         cfg,
		Logger:         logger,
		Tracer:         tracer,
		Meter:          meter,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}, nil
}

// Shutdown flushes the tracer and meter providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down meter provider: %w", err)
	}
	return nil
}

// ServeHealth starts a background HTTP server exposing /health and
// /metrics, returning a stop function. It is a no-op if cfg.HealthAddr is
// empty.
func (o *Observability) ServeHealth() (stop func(context.Context) error, err error) {
	if o.Config.HealthAddr == "" {
		return func(context.Context) error { return nil }, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: o.Config.HealthAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.Logger.Error("health server exited", "error", err)
		}
	}()

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoOp returns an Observability bundle suitable for tests: an error-level
// logger, a process-local tracer provider, and a meter whose Prometheus
// registry nobody scrapes.
func NoOp() *Observability {
	o, err := New(Config{ServiceName: "test"})
	if err != nil {
		panic(err)
	}
	o.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return o
}
