package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cwsweep/internal/config"
	"cwsweep/internal/logging"
	"cwsweep/internal/results"
	"cwsweep/internal/sweep"
)

var (
	replayInput      string
	replayConfigPath string
	replayScript     string
	replayTarget     string
	replayImage      string
	replayPrintOnly  bool
	replayLogLevel   string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the plot from a results file",
	Long:  "replay reads the cell rows of a sweep results file (JSONL) and writes the plot without running the engine.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(replayConfigPath, "")
		if err != nil {
			return err
		}
		if replayScript != "" {
			cfg.Plot.ScriptPath = replayScript
		}
		if replayTarget != "" {
			cfg.Plot.Target = replayTarget
		}
		if cmd.Flags().Changed("image") {
			cfg.Plot.ImagePath = replayImage
		}
		log, err := logging.New(replayLogLevel, cfg.Log.Format)
		if err != nil {
			return err
		}
		ctx := logging.NewContext(cmd.Context(), log)

		cells, err := results.ReplayFile(replayInput)
		if err != nil {
			return err
		}
		log.Info("replaying results", "input", replayInput, "cells", len(cells))
		if replayPrintOnly {
			echo := results.NewRecorder("replay", results.NewJSONStdoutWriter(false))
			for _, c := range cells {
				if err := echo.WriteCell(c); err != nil {
					return err
				}
			}
		}
		return writePlot(ctx, sweep.BuildDatasets(cells), cfg.Plot)
	},
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayInput, "input", "", "Path to sweep results file (JSONL)")
	f.StringVar(&replayConfigPath, "config", "", "Path to sweep configuration YAML for plot labels and paths")
	f.StringVar(&replayScript, "script", "", "Override the gnuplot script path")
	f.StringVar(&replayTarget, "target", "", "Override the gnuplot output target")
	f.StringVar(&replayImage, "image", "", "Override the rendered image path (empty disables it)")
	f.BoolVar(&replayPrintOnly, "print-only", false, "Echo replayed cells to STDOUT as JSON")
	f.StringVar(&replayLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	replayCmd.MarkFlagRequired("input")
}
