package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/cli"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/labels"
)

func newEndpointsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List known transport endpoints",
		Long: `List the endpoint table: transport coordinates recorded by clients or
learned from beacon peers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "endpoints",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					eps, err := c.ListEndpoints(ctx)
					if err != nil {
						return fmt.Errorf("endpoints: %w", err)
					}
					return renderEndpoints(out, eps)
				},
			})
		},
	}
	cmd.AddCommand(newEndpointSetCmd(v), newEndpointRmCmd(v))
	return cmd
}

func newEndpointSetCmd(v *viper.Viper) *cobra.Command {
	var (
		kind   string
		coords string
		meta   []string
	)

	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Record an endpoint",
		Long: `Record (or replace) the endpoint stored under ID.

Examples:
  hostess endpoints set mixer-a --type tcp --coordinates 10.0.0.4:9000
  hostess endpoints set tap --type unix --coordinates /run/tap.sock --meta zone=a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := labels.Parse(meta)
			if err != nil {
				return err
			}
			ep := hostess.Endpoint{Kind: kind, Coordinates: coords, Metadata: md}
			return cli.RunCommand(cli.CommandConfig{
				Name:  "endpoint-set",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					if err := c.RegisterEndpoint(ctx, args[0], ep); err != nil {
						return fmt.Errorf("set endpoint: %w", err)
					}
					return renderEndpoints(out, map[string]hostess.Endpoint{args[0]: ep})
				},
			})
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "transport kind (tcp, ws, unix, redis, ...)")
	cmd.Flags().StringVar(&coords, "coordinates", "", "kind-specific address")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "metadata key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEndpointRmCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "endpoint-rm",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					removed, err := c.RemoveEndpoint(ctx, args[0])
					if err != nil {
						return fmt.Errorf("remove endpoint: %w", err)
					}
					return out.KV("endpoint-rm").
						Set("ID", args[0]).
						Set("Removed", removed).
						Render()
				},
			})
		},
	}
}

func renderEndpoints(out *cli.Output, eps map[string]hostess.Endpoint) error {
	ids := make([]string, 0, len(eps))
	for id := range eps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := out.Table("endpoints", "ID", "Type", "Coordinates", "Metadata")
	for _, id := range ids {
		ep := eps[id]
		t.AddRow(id, ep.Kind, ep.Coordinates, labels.Format(ep.Metadata, ","))
	}
	return t.Render()
}
