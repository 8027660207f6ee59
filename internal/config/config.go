package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/confmap"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	Registry      RegistryConfig      `mapstructure:"registry"`
	Control       ControlConfig       `mapstructure:"control"`
	Mirror        MirrorConfig        `mapstructure:"mirror"`
	Beacon        BeaconConfig        `mapstructure:"beacon"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type GRPCConfig struct {
	Addr           string `mapstructure:"addr"`
	MaxRecvMsgSize int    `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int    `mapstructure:"max_send_msg_size"`
}

type RegistryConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	EvictionThreshold time.Duration `mapstructure:"eviction_threshold"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// ControlConfig configures the Unix socket control bus.
type ControlConfig struct {
	Socket            string        `mapstructure:"socket"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
}

// MirrorConfig names an optional second bus that receives the same registry
// events as the control socket. Kind is any registered transport kind.
type MirrorConfig struct {
	Kind   string            `mapstructure:"kind"`
	Config map[string]string `mapstructure:"config"`
}

type BeaconConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	NodeName             string   `mapstructure:"node_name"`
	BindAddr             string   `mapstructure:"bind_addr"`
	BindPort             int      `mapstructure:"bind_port"`
	Seeds                []string `mapstructure:"seeds"`
	AdvertiseKind        string   `mapstructure:"advertise_kind"`
	AdvertiseCoordinates string   `mapstructure:"advertise_coordinates"`
}

// AdvertiseGRPC advertises the registry's own gRPC address.
const AdvertiseGRPC = "grpc"

// Coordinates returns what the beacon advertises. The grpc kind falls back
// to the gRPC listen address.
func (b BeaconConfig) Coordinates(grpcAddr string) string {
	if b.AdvertiseCoordinates == "" && b.AdvertiseKind == AdvertiseGRPC {
		return grpcAddr
	}
	return b.AdvertiseCoordinates
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// SocketPath returns the control socket path, relative paths resolved
// against the data directory.
func (c Config) SocketPath() string {
	p := c.Control.Socket
	if p == "" {
		p = Defaults.SocketName
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(confmap.ExpandPath(c.DataDir), p)
}

// Validate checks cross-field constraints viper cannot express.
func (c Config) Validate() error {
	r := c.Registry
	if r.HeartbeatInterval <= 0 {
		return confmap.NewConfigError("registry", "heartbeat_interval", "must be positive")
	}
	if r.EvictionThreshold <= r.HeartbeatInterval {
		return confmap.NewConfigError("registry", "eviction_threshold",
			fmt.Sprintf("must exceed heartbeat_interval (%s)", r.HeartbeatInterval))
	}
	if r.SweepInterval <= 0 {
		return confmap.NewConfigError("registry", "sweep_interval", "must be positive")
	}
	b := c.Beacon
	if b.Enabled && b.AdvertiseKind != "" && b.AdvertiseKind != AdvertiseGRPC && b.AdvertiseCoordinates == "" {
		return confmap.NewConfigError("beacon", "advertise_coordinates",
			fmt.Sprintf("required when advertise_kind is %q", b.AdvertiseKind))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("grpc.addr", Defaults.GRPCAddr)
	v.SetDefault("grpc.max_recv_msg_size", Defaults.MaxRecvMsgSize)
	v.SetDefault("grpc.max_send_msg_size", Defaults.MaxSendMsgSize)

	v.SetDefault("registry.heartbeat_interval", Defaults.HeartbeatInterval)
	v.SetDefault("registry.eviction_threshold", Defaults.EvictionThreshold)
	v.SetDefault("registry.sweep_interval", Defaults.SweepInterval)

	v.SetDefault("control.socket", Defaults.SocketName)
	v.SetDefault("control.heartbeat_interval", Defaults.BusHeartbeat)
	v.SetDefault("control.shutdown_grace", Defaults.ShutdownGrace)

	v.SetDefault("mirror.kind", "")

	v.SetDefault("beacon.enabled", false)
	v.SetDefault("beacon.bind_addr", Defaults.BeaconBindAddr)
	v.SetDefault("beacon.bind_port", Defaults.BeaconBindPort)
	v.SetDefault("beacon.advertise_kind", AdvertiseGRPC)

	v.SetDefault("observability.log_level", Defaults.LogLevel)
	v.SetDefault("observability.log_format", Defaults.LogFormat)
	v.SetDefault("observability.metrics_addr", Defaults.MetricsAddr)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", "hostess")
	v.SetDefault("observability.service_version", "dev")
}

// BindStartFlags binds cobra flags to viper for the start command.
func BindStartFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("data-dir", "", "data directory (default ~/.arc-kernel)")
	f.String("addr", "", "gRPC listen address")
	f.String("socket", "", "control bus socket path")
	f.Duration("heartbeat-interval", 0, "expected client heartbeat interval")
	f.Duration("eviction-threshold", 0, "silence after which an entry is evicted")
	f.Bool("beacon", false, "enable the memberlist beacon")
	f.StringSlice("seed", nil, "beacon seed address (repeatable)")
	f.String("metrics-addr", "", "metrics HTTP listen address")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("grpc.addr", f.Lookup("addr"))
	_ = v.BindPFlag("control.socket", f.Lookup("socket"))
	_ = v.BindPFlag("registry.heartbeat_interval", f.Lookup("heartbeat-interval"))
	_ = v.BindPFlag("registry.eviction_threshold", f.Lookup("eviction-threshold"))
	_ = v.BindPFlag("beacon.enabled", f.Lookup("beacon"))
	_ = v.BindPFlag("beacon.seeds", f.Lookup("seed"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
}

// BindCommonFlags binds flags shared by every command.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (auto, json, pretty)")

	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// Load applies defaults, reads flags, env and file, and validates the result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)
	if err := ReadIn(v, EnvPrefix, "hostess", configFile, SearchPaths()...); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
