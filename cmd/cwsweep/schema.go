package main

import (
	"github.com/spf13/cobra"

	"cwsweep/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CUE schema for sweep configuration files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(config.Schema())
		return err
	},
}
