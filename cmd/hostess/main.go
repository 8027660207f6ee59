package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-kernel/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "hostess",
		Short: "Hostess - kernel registry",
		Long: `Hostess registry server and client commands.

Server:
  hostess start        Start the registry, control bus and beacon

Client:
  hostess info         Show registry timing
  hostess list         List live entries
  hostess query        Filter entries by capability or CEL expression
  hostess reserve      Reserve a terminal
  hostess release      Release a terminal
  hostess endpoints    List known transport endpoints
  hostess watch        Stream registry events`,
		SilenceUsage: true,
		// Client commands read the same config file and HOSTESS_* env as
		// start, so --hostess can be omitted.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "start" {
				return nil
			}
			configFile, _ := cmd.Flags().GetString("config")
			return config.ReadIn(v, config.EnvPrefix, "hostess", configFile, config.SearchPaths()...)
		},
	}

	config.BindCommonFlags(rootCmd, v)

	rootCmd.PersistentFlags().String("hostess", "", "hostess gRPC address (default localhost:50071, or HOSTESS_ADDR env)")
	_ = v.BindPFlag("hostess", rootCmd.PersistentFlags().Lookup("hostess"))

	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, markdown)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(
		newStartCmd(v),
		newInfoCmd(v),
		newListCmd(v),
		newQueryCmd(v),
		newReserveCmd(v),
		newReleaseCmd(v),
		newEndpointsCmd(v),
		newWatchCmd(v),
	)

	return rootCmd.Execute()
}
