// Package config loads hostess daemon configuration from flags, environment
// and config files.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix is prepended to environment overrides, e.g. HOSTESS_GRPC_ADDR.
const EnvPrefix = "HOSTESS"

// Defaults contains default values for the hostess daemon.
var Defaults = struct {
	GRPCAddr          string
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
	HeartbeatInterval time.Duration
	EvictionThreshold time.Duration
	SweepInterval     time.Duration
	SocketName        string
	BusHeartbeat      time.Duration
	ShutdownGrace     time.Duration
	BeaconBindAddr    string
	BeaconBindPort    int
	MetricsAddr       string
	LogLevel          string
	LogFormat         string
}{
	GRPCAddr:          ":50071",
	MaxRecvMsgSize:    4 * 1024 * 1024, // 4MB
	MaxSendMsgSize:    4 * 1024 * 1024, // 4MB
	HeartbeatInterval: 5 * time.Second,
	EvictionThreshold: 20 * time.Second,
	SweepInterval:     5 * time.Second,
	SocketName:        "hostess.sock",
	BusHeartbeat:      time.Second,
	ShutdownGrace:     100 * time.Millisecond,
	BeaconBindAddr:    "0.0.0.0",
	BeaconBindPort:    7946,
	MetricsAddr:       ":9090",
	LogLevel:          "info",
	LogFormat:         "auto",
}

// DefaultDataDir returns the default data directory (~/.arc-kernel).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arc-kernel"
	}
	return filepath.Join(home, ".arc-kernel")
}

// SearchPaths are the directories scanned for hostess.{yaml,hcl,toml}.
func SearchPaths() []string {
	return []string{".", "$HOME/.arc-kernel", "/etc/arc-kernel"}
}
