package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/cli"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/hostess"
)

func newReserveCmd(v *viper.Viper) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "reserve ID TERMINAL RESERVATION",
		Short: "Reserve a terminal",
		Long: `Mark a terminal in use by RESERVATION.

With --as the reservation is checked against the terminal's direction:
producers need an input or multiplexer terminal, consumers an output or
multiplexer terminal.

Examples:
  hostess reserve 6f1c... in pipeline-7
  hostess reserve 6f1c... out pipeline-7 --as consumer`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, terminal, reservation := args[0], args[1], args[2]
			role, err := parseReserveRole(as)
			if err != nil {
				return err
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:  "reserve",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					if err := c.MarkInUseAs(ctx, id, terminal, reservation, role); err != nil {
						return fmt.Errorf("reserve: %w", err)
					}
					return out.KV("reservation").
						Set("ID", id).
						Set("Terminal", terminal).
						Set("Reservation", reservation).
						Render()
				},
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "reserve as producer or consumer")
	return cmd
}

func newReleaseCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "release ID TERMINAL",
		Short: "Release a terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, terminal := args[0], args[1]
			return cli.RunCommand(cli.CommandConfig{
				Name:  "release",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					if err := c.MarkAvailable(ctx, id, terminal); err != nil {
						return fmt.Errorf("release: %w", err)
					}
					return out.KV("release").
						Set("ID", id).
						Set("Terminal", terminal).
						Render()
				},
			})
		},
	}
}

func parseReserveRole(s string) (hostess.ReserveRole, error) {
	switch hostess.ReserveRole(s) {
	case "":
		return "", nil
	case hostess.AsProducer, hostess.AsConsumer:
		return hostess.ReserveRole(s), nil
	default:
		return "", fmt.Errorf("--as must be %q or %q, got %q", hostess.AsProducer, hostess.AsConsumer, s)
	}
}
