// Package cmd defines the CLI commands for the lvmh executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lvmh",
		Short: "Harvest and export LVMH job listings",
		Long: `lvmh collects job listings from the LVMH careers search API,
normalizes them into a fixed CSV schema, and serves or writes the results.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// ExecuteContext runs the root command under the given context.
func ExecuteContext(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
