// Package observability wires logging, tracing and metrics for the kernel
// daemon and its clients.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

// Observability holds all observability components.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	Transport      *transport.Metrics
	TracerProvider trace.TracerProvider
	Shutdown       *ShutdownCoordinator
	ServiceName    string
	ServiceVersion string

	sdkTP *sdktrace.TracerProvider
}

// ObsConfig is the config subset needed by the observability package.
type ObsConfig struct {
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
	Instance       string
}

// New initializes logging, tracing, and metrics.
func New(ctx context.Context, cfg ObsConfig, w io.Writer) (*Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "hostess"
	}
	shutdown := &ShutdownCoordinator{}

	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, w)
	metrics := NewMetrics()

	var tp trace.TracerProvider
	var sdkTP *sdktrace.TracerProvider

	if cfg.OTLPEndpoint != "" {
		var err error
		sdkTP, err = InitTracer(ctx, TracerConfig{
			Endpoint:       cfg.OTLPEndpoint,
			Protocol:       cfg.OTLPProtocol,
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			Instance:       cfg.Instance,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		tp = sdkTP
		shutdown.Register("tracer", sdkTP.Shutdown)
	} else {
		tp = tracenoop.NewTracerProvider()
		logger.Debug("tracing disabled", "reason", "no otlp endpoint")
	}

	return &Observability{
		Logger:         logger,
		Metrics:        metrics,
		Transport:      transport.NewMetrics(metrics.Registry),
		TracerProvider: tp,
		Shutdown:       shutdown,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		sdkTP:          sdkTP,
	}, nil
}

// Register adds collectors to the metrics registry.
func (o *Observability) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := o.Metrics.Registry.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// Close flushes traces and runs shutdown handlers.
func (o *Observability) Close(ctx context.Context) error {
	return o.Shutdown.Shutdown(ctx)
}

// ServeMetrics binds addr and serves /metrics and /health until shutdown.
// The returned address is the one actually bound.
func (o *Observability) ServeMetrics(ctx context.Context, addr string) (net.Addr, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Handler: mux}
	go func() {
		o.Logger.Info("metrics server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("metrics server error", "error", err)
		}
	}()

	o.Shutdown.Register("metrics-server", srv.Shutdown)
	return ln.Addr(), nil
}
