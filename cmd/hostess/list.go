package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/cli"
	"github.com/gezibash/arc-kernel/pkg/client"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/labels"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live registry entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "list",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					entries, err := c.List(ctx)
					if err != nil {
						return fmt.Errorf("list: %w", err)
					}
					return renderEntries(out, entries)
				},
			})
		},
	}
}

func newQueryCmd(v *viper.Viper) *cobra.Command {
	var (
		f    hostess.Filter
		role string
		expr string
		meta []string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find entries by capability",
		Long: `Find live entries by capability, or with a CEL expression over the entry.

Examples:
  hostess query --accepts audio/pcm
  hostess query --role transform --feature resample --available
  hostess query --accepts audio/pcm --meta zone=a
  hostess query --expr 'role == "source" && "mono" in features && available'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.Role = hostess.Role(role)
			required, err := labels.Parse(meta)
			if err != nil {
				return err
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:  "query",
				Viper: v,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					var (
						entries []hostess.Entry
						err     error
					)
					if expr != "" {
						entries, err = c.QueryExpr(ctx, expr)
					} else {
						entries, err = c.Query(ctx, &f)
					}
					if err != nil {
						return fmt.Errorf("query: %w", err)
					}
					return renderEntries(out, withMetadata(entries, required))
				},
			})
		},
	}

	cmd.Flags().StringVar(&f.Accepts, "accepts", "", "media type the entry must accept")
	cmd.Flags().StringVar(&f.Produces, "produces", "", "media type the entry must produce")
	cmd.Flags().StringSliceVar(&f.Features, "feature", nil, "required feature (repeatable)")
	cmd.Flags().StringVar(&role, "role", "", "capability type (source, transform, output, input)")
	cmd.Flags().BoolVar(&f.AvailableOnly, "available", false, "only entries with a free terminal")
	cmd.Flags().StringVar(&expr, "expr", "", "CEL expression; overrides the capability filters")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "required metadata key=value (repeatable)")
	return cmd
}

// withMetadata keeps the entries carrying every required metadata pair.
func withMetadata(entries []hostess.Entry, required map[string]string) []hostess.Entry {
	if len(required) == 0 {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if labels.Has(e.Metadata, required) {
			out = append(out, e)
		}
	}
	return out
}

func renderEntries(out *cli.Output, entries []hostess.Entry) error {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ServerName != entries[j].ServerName {
			return entries[i].ServerName < entries[j].ServerName
		}
		return entries[i].ID < entries[j].ID
	})

	t := out.Table("entries", "ID", "Server Name", "Type", "Terminals", "Last Heartbeat")
	for _, e := range entries {
		t.AddRow(
			e.ID,
			e.ServerName,
			orDash(string(e.Capabilities.Role)),
			formatTerminals(e.Terminals),
			formatAge(e.LastHeartbeat),
		)
	}
	return t.Render()
}

// formatTerminals renders "name:direction" pairs with the holder of any
// reservation in brackets.
func formatTerminals(ts []hostess.TerminalState) string {
	if len(ts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		s := t.Name + ":" + string(t.Direction)
		if !t.Available() {
			s += "[" + t.ReservedBy + "]"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func formatAge(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return time.Since(ts).Truncate(time.Millisecond).String() + " ago"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
