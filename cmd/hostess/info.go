package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/cli"
	"github.com/gezibash/arc-kernel/pkg/client"
)

func newInfoCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show registry timing and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "info",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					info, err := c.Info(ctx)
					if err != nil {
						return fmt.Errorf("info: %w", err)
					}
					entries, err := c.List(ctx)
					if err != nil {
						return fmt.Errorf("list: %w", err)
					}
					endpoints, err := c.ListEndpoints(ctx)
					if err != nil {
						return fmt.Errorf("endpoints: %w", err)
					}
					available := 0
					for i := range entries {
						if entries[i].Available() {
							available++
						}
					}
					return out.KV("info").
						Section("Timing").
						Set("Heartbeat Interval", info.HeartbeatInterval).
						Set("Eviction Threshold", info.EvictionThreshold).
						Section("Contents").
						Set("Entries", len(entries)).
						Set("Available", available).
						Set("Endpoints", len(endpoints)).
						Render()
				},
			})
		},
	}
}
