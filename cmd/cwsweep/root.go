package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cwsweep",
	Short: "802.11 contention window sweep harness",
	Long: "cwsweep runs a simulated wireless BSS over a grid of contention window bounds " +
		"and plots the mean per-flow throughput of each configuration.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(schemaCmd)
}
