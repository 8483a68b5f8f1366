// Command drip runs and inspects a standalone Drip stream ledger.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "drip",
		Short:         "Block-height payment streams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("config_file", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(
		newServeCmd(v),
		newInspectCmd(v),
		newTokenCmd(v),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "drip %s (%s)\n", version, commit)
		},
	}
}
