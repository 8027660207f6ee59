package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gezibash/arc-kernel/internal/cli"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/hostess"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream registry events",
		Long: `Print registry events as they happen until interrupted.

Examples:
  hostess watch
  hostess watch --type evicted --type deregistered
  hostess watch -o json | jq .id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			evTypes := make([]hostess.EventType, 0, len(types))
			for _, t := range types {
				evTypes = append(evTypes, hostess.EventType(t))
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:    "watch",
				Viper:   v,
				Timeout: -1,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					w, err := c.Watch(ctx, evTypes...)
					if err != nil {
						return fmt.Errorf("watch: %w", err)
					}
					defer w.Close()

					enc := json.NewEncoder(os.Stdout)
					for {
						ev, err := w.Recv()
						if err != nil {
							if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
								return nil
							}
							return fmt.Errorf("watch: %w", err)
						}
						if out.Format() == cli.FormatJSON {
							if err := enc.Encode(ev); err != nil {
								return err
							}
							continue
						}
						fmt.Printf("%s  %-12s %s %s%s\n",
							ev.At.Format("15:04:05.000"), ev.Type, ev.ID, ev.ServerName, terminalSuffix(ev))
					}
				},
			})
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "event type to show (repeatable; default all)")
	return cmd
}

func terminalSuffix(ev hostess.Event) string {
	switch {
	case ev.Terminal == "":
		return ""
	case ev.Reservation == "":
		return " " + ev.Terminal
	default:
		return " " + ev.Terminal + "=" + ev.Reservation
	}
}
