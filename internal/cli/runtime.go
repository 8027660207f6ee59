// Package cli provides helpers for building hostess client commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/config"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/runtime"
)

const clientKey = "hostess.client"

// NewBuilder creates a runtime builder configured from viper settings.
// Client commands log to {data_dir}/log/cli.log so stdout stays clean for
// rendered output.
func NewBuilder(name string, v *viper.Viper) *runtime.Builder {
	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	builder := runtime.New(name).DataDir(dataDir)

	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0o700); err == nil {
		f, err := os.OpenFile(filepath.Join(logDir, "cli.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is constructed from known data dir
		if err == nil {
			builder = builder.LogWriter(f).Use(func(rt *runtime.Runtime) error {
				rt.OnClose(f.Close)
				return nil
			})
		}
	}

	level := v.GetString("observability.log_level")
	format := v.GetString("observability.log_format")
	if format == "" || format == "auto" {
		format = "json"
	}
	return builder.Logging(level, format)
}

// WithHostess dials the registry at addr and closes the connection with the
// runtime. The runtime name is sent as the caller name.
func WithHostess(addr string) runtime.Extension {
	return func(rt *runtime.Runtime) error {
		c, err := client.Dial(addr, client.WithCaller(rt.Name()))
		if err != nil {
			return fmt.Errorf("dial hostess %s: %w", addr, err)
		}
		rt.Set(clientKey, c)
		rt.OnClose(c.Close)
		rt.Log().Debug("hostess client ready", "addr", addr)
		return nil
	}
}

// HostessFrom returns the client installed by WithHostess, or nil.
func HostessFrom(rt *runtime.Runtime) *client.Client {
	if c, ok := rt.Get(clientKey).(*client.Client); ok {
		return c
	}
	return nil
}
