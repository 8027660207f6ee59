package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/server"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

func startServer(t *testing.T) string {
	t.Helper()
	h, err := hostess.New(hostess.Config{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("hostess.New: %v", err)
	}
	srv, err := server.New("127.0.0.1:0", h, server.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv.Addr()
}

func testViper(t *testing.T, addr string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("data_dir", t.TempDir())
	v.Set("hostess", addr)
	v.Set("output", "json")
	return v
}

func TestRunCommand(t *testing.T) {
	addr := startServer(t)

	t.Run("hands a connected client to run", func(t *testing.T) {
		v := testViper(t, addr)
		var called bool
		err := RunCommand(CommandConfig{
			Name:  "test-cmd",
			Viper: v,
			Run: func(ctx context.Context, c *client.Client, out *Output) error {
				called = true
				if out.Format() != FormatJSON {
					t.Errorf("format = %q", out.Format())
				}
				_, err := c.List(ctx)
				return err
			},
		})
		if err != nil {
			t.Fatalf("RunCommand: %v", err)
		}
		if !called {
			t.Fatal("Run was not called")
		}
		if _, err := os.Stat(filepath.Join(v.GetString("data_dir"), "log", "cli.log")); err != nil {
			t.Errorf("cli.log not created: %v", err)
		}
	})

	t.Run("applies timeout", func(t *testing.T) {
		err := RunCommand(CommandConfig{
			Name:    "timeout-cmd",
			Viper:   testViper(t, addr),
			Timeout: 20 * time.Millisecond,
			Run: func(ctx context.Context, _ *client.Client, _ *Output) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want deadline exceeded", err)
		}
	})

	t.Run("negative timeout leaves context open", func(t *testing.T) {
		err := RunCommand(CommandConfig{
			Name:    "watch-cmd",
			Viper:   testViper(t, addr),
			Timeout: -1,
			Run: func(ctx context.Context, _ *client.Client, _ *Output) error {
				if _, ok := ctx.Deadline(); ok {
					t.Error("context has a deadline")
				}
				return nil
			},
		})
		if err != nil {
			t.Fatalf("RunCommand: %v", err)
		}
	})

	t.Run("propagates run error", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := RunCommand(CommandConfig{
			Name:  "err-cmd",
			Viper: testViper(t, addr),
			Run: func(context.Context, *client.Client, *Output) error {
				return sentinel
			},
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want sentinel", err)
		}
	})
}

func TestRunCommandValidation(t *testing.T) {
	run := func(context.Context, *client.Client, *Output) error { return nil }
	tests := []struct {
		name string
		cfg  CommandConfig
	}{
		{"no name", CommandConfig{Viper: viper.New(), Run: run}},
		{"no viper", CommandConfig{Name: "x", Run: run}},
		{"no run", CommandConfig{Name: "x", Viper: viper.New()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RunCommand(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
