// Package unixsock implements the transport contracts over Unix domain
// sockets.
//
// A Stream wraps one connected socket and leans on the kernel's own flow
// control. The control Bus frames each message as one JSON line, sends a
// periodic heartbeat and shuts down in two phases.
package unixsock

import (
	"context"
	"time"

	"github.com/gezibash/arc-kernel/internal/confmap"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

const (
	kind = "unix"

	KeyPath    = "path"
	KeyTimeout = "timeout"
	KeyListen  = "listen"
)

func init() {
	transport.Register(kind, transport.Kind{
		Stream:   newStreamFactory,
		Bus:      newBusFactory,
		Defaults: Defaults,
	})
}

// Defaults returns the default configuration for Unix socket transports.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:    "",
		KeyTimeout: "5s",
		KeyListen:  "false",
	}
}

func parseCommon(config map[string]string) (string, time.Duration, error) {
	path := confmap.ExpandPath(confmap.GetString(config, KeyPath, ""))
	if path == "" || path == "." {
		return "", 0, confmap.NewConfigError(kind, KeyPath, "cannot be empty")
	}
	timeout, err := confmap.GetDuration(config, KeyTimeout, 5*time.Second)
	if err != nil {
		return "", 0, confmap.NewConfigErrorWithValue(kind, KeyTimeout, config[KeyTimeout], err.Error())
	}
	return path, timeout, nil
}

func newStreamFactory(ctx context.Context, config map[string]string, opts transport.Options) (transport.Stream, error) {
	path, timeout, err := parseCommon(config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Dial(ctx, path, opts)
}

func newBusFactory(ctx context.Context, config map[string]string, opts transport.Options) (transport.Bus, error) {
	path, timeout, err := parseCommon(config)
	if err != nil {
		return nil, err
	}
	listen, err := confmap.GetBool(config, KeyListen, false)
	if err != nil {
		return nil, confmap.NewConfigErrorWithValue(kind, KeyListen, config[KeyListen], err.Error())
	}
	if listen {
		return ListenBus(ctx, path, BusConfig{}, opts)
	}
	return DialBus(ctx, path, BusConfig{DialTimeout: timeout}, opts)
}
