package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/gezibash/arc-kernel/internal/announce"
	"github.com/gezibash/arc-kernel/internal/beacon"
	"github.com/gezibash/arc-kernel/internal/config"
	"github.com/gezibash/arc-kernel/internal/observability"
	"github.com/gezibash/arc-kernel/internal/server"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
	"github.com/gezibash/arc-kernel/pkg/runtime"
	"github.com/gezibash/arc-kernel/pkg/transport"
	_ "github.com/gezibash/arc-kernel/pkg/transport/inproc"
	_ "github.com/gezibash/arc-kernel/pkg/transport/netsock"
	_ "github.com/gezibash/arc-kernel/pkg/transport/redisbus"
	"github.com/gezibash/arc-kernel/pkg/transport/unixsock"
)

// stopTimeout bounds each shutdown phase.
const stopTimeout = 5 * time.Second

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the registry server",
		Long: `Start the hostess registry.

The registry serves gRPC, evicts instances that stop heartbeating, and
announces every change on a Unix socket control bus (and optionally a mirror
bus of any registered transport kind).

Examples:
  hostess start                                   # default settings
  hostess start --addr :50072                     # custom port
  hostess start --heartbeat-interval 1s --eviction-threshold 4s
  hostess start --beacon --seed 10.0.0.1:7946     # join a kernel cluster
  hostess start --log-level debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	config.BindStartFlags(cmd, v)
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	o := cfg.Observability
	obs, err := observability.New(parent, observability.ObsConfig{
		LogLevel:       o.LogLevel,
		LogFormat:      o.LogFormat,
		OTLPEndpoint:   o.OTLPEndpoint,
		OTLPProtocol:   o.OTLPProtocol,
		ServiceName:    o.ServiceName,
		ServiceVersion: o.ServiceVersion,
		Instance:       cfg.Beacon.NodeName,
	}, os.Stdout)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = obs.Close(ctx)
	}()

	rt, err := runtime.Compose("hostess",
		runtime.WithDataDir(cfg.DataDir),
		runtime.WithLogger(logging.New(obs.Logger)),
		runtime.WithContext(parent),
	)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()
	log := rt.Log()

	h, err := hostess.New(hostess.Config{
		HeartbeatInterval: cfg.Registry.HeartbeatInterval,
		EvictionThreshold: cfg.Registry.EvictionThreshold,
		SweepInterval:     cfg.Registry.SweepInterval,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("create hostess: %w", err)
	}
	if err := obs.Register(hostess.NewCollector(h)); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	h.StartEvictionLoop(rt.Context())
	defer h.StopEvictionLoop()

	srv, err := server.New(cfg.GRPC.Addr, h, server.Options{
		MaxRecvMsgSize: cfg.GRPC.MaxRecvMsgSize,
		MaxSendMsgSize: cfg.GRPC.MaxSendMsgSize,
		Metrics:        obs.Metrics,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	topts := transport.Options{Logger: log, Metrics: obs.Transport}
	buses, err := openBuses(rt, cfg, topts, obs.Metrics)
	if err != nil {
		srv.Stop(context.Background())
		return err
	}
	ann := announce.Start(h, log, buses...)

	if cfg.Beacon.Enabled {
		b, err := beacon.New(beacon.Config{
			NodeName:    cfg.Beacon.NodeName,
			BindAddr:    cfg.Beacon.BindAddr,
			BindPort:    cfg.Beacon.BindPort,
			Seeds:       cfg.Beacon.Seeds,
			Kind:        cfg.Beacon.AdvertiseKind,
			Coordinates: cfg.Beacon.Coordinates(srv.Addr()),
			Version:     o.ServiceVersion,
			Logger:      log,
			Metrics:     obs.Metrics,
		}, h)
		if err != nil {
			ann.Stop()
			srv.Stop(context.Background())
			return fmt.Errorf("create beacon: %w", err)
		}
		rt.OnClose(b.Close)
		if err := b.Start(rt.Context()); err != nil {
			return fmt.Errorf("start beacon: %w", err)
		}
	}

	if o.MetricsAddr != "" {
		addr, err := obs.ServeMetrics(rt.Context(), o.MetricsAddr)
		if err != nil {
			log.Warn("metrics server disabled", "addr", o.MetricsAddr, "error", err)
		} else {
			log.Info("metrics listening", "addr", addr.String())
		}
	}

	log.Info("hostess listening",
		"addr", srv.Addr(),
		"socket", cfg.SocketPath(),
		"heartbeat_interval", cfg.Registry.HeartbeatInterval,
		"eviction_threshold", cfg.Registry.EvictionThreshold,
	)

	g, ctx := errgroup.WithContext(rt.Context())
	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		// Peers hear control.shutdown before the registry goes away.
		ann.Stop()
		sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		for _, b := range buses {
			if s, ok := b.(interface{ Shutdown(context.Context) error }); ok {
				_ = s.Shutdown(sctx)
			} else {
				_ = b.Close()
			}
		}
		srv.Stop(sctx)
		return nil
	})
	return g.Wait()
}

// openBuses opens the control socket and, if configured, the mirror bus.
// Both are attached to the runtime so they close with it. They are not tied
// to the runtime context: serve shuts them down explicitly, after the
// announcer has flushed.
func openBuses(rt *runtime.Runtime, cfg config.Config, opts transport.Options, m *observability.Metrics) ([]transport.Bus, error) {
	ctx := context.WithoutCancel(rt.Context())
	path := cfg.SocketPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	control, err := unixsock.ListenBus(ctx, path, unixsock.BusConfig{
		HeartbeatInterval: cfg.Control.HeartbeatInterval,
		ShutdownGrace:     cfg.Control.ShutdownGrace,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("listen control bus: %w", err)
	}
	if err := transport.AttachBus(control)(rt); err != nil {
		return nil, err
	}
	buses := []transport.Bus{control}

	if kind := cfg.Mirror.Kind; kind != "" {
		op, octx := observability.StartOperation(ctx, m, rt.Log().Slog(), "mirror.open",
			attribute.String("transport.kind", kind))
		mirror, err := transport.NewBus(octx, kind, cfg.Mirror.Config, opts)
		if err := op.End(err); err != nil {
			return nil, fmt.Errorf("open %s mirror bus: %w", kind, err)
		}
		rt.OnClose(mirror.Close)
		buses = append(buses, mirror)
		rt.Log().Info("mirroring registry events", "kind", kind)
	}
	return buses, nil
}
