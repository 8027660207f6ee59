package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/config"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/runtime"
)

// DefaultTimeout bounds a single client command.
const DefaultTimeout = 10 * time.Second

// CommandConfig configures a client command.
type CommandConfig struct {
	// Name identifies this command (runtime name and caller metadata).
	Name string

	// Viper holds the command's configuration.
	Viper *viper.Viper

	// Timeout for the command operation. Zero uses DefaultTimeout; negative
	// means no timeout (watch).
	Timeout time.Duration

	// Run is the command's business logic.
	Run func(ctx context.Context, c *client.Client, out *Output) error
}

// RunCommand builds a runtime, dials the hostess, applies the timeout and
// hands the client and an Output to Run.
func RunCommand(cfg CommandConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cfg.Viper == nil {
		return fmt.Errorf("viper required")
	}
	if cfg.Run == nil {
		return fmt.Errorf("run function required")
	}

	addr := config.ClientAddr(cfg.Viper)
	rt, err := NewBuilder(cfg.Name, cfg.Viper).
		Use(WithHostess(addr)).
		Build()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() { _ = rt.Close() }()

	return run(rt, cfg, addr)
}

func run(rt *runtime.Runtime, cfg CommandConfig, addr string) error {
	ctx := rt.Context()
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := NewOutputFromViper(cfg.Viper).ForHostess(addr)
	return cfg.Run(ctx, HostessFrom(rt), out)
}
