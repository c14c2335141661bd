package main

import (
	"context"
	"os"

	"golang.org/x/term"

	"cwsweep/internal/logging"
	"cwsweep/internal/results"
)

// newWriters sets up the result writers based on flags and env vars.
// It returns the writer and a cleanup function to close any resources.
func newWriters(ctx context.Context, ov results.Overview, printOnly, quiet bool, resultsFile string, withFlows bool) (results.CellWriter, func(), error) {
	cleanup := func() {}

	base, err := baseWriter(ctx, ov, printOnly, quiet)
	if err != nil {
		return nil, nil, err
	}
	if resultsFile == "" {
		if base == nil {
			return results.NewMultiWriter(), cleanup, nil
		}
		return base, cleanup, nil
	}

	flowPath := ""
	if withFlows {
		flowPath = resultsFile + ".flows"
	}
	fw, err := results.NewFileWriter(resultsFile, flowPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup = func() {
		if err := fw.Close(); err != nil {
			logging.FromContext(ctx).Error("closing results file", "path", resultsFile, "err", err)
		}
	}
	return results.NewMultiWriter(base, fw), cleanup, nil
}

// baseWriter chooses GreptimeDB when configured, otherwise STDOUT. With quiet
// set (the TUI owns the terminal) no STDOUT writer is returned.
func baseWriter(ctx context.Context, ov results.Overview, printOnly, quiet bool) (results.CellWriter, error) {
	if !printOnly {
		if cfg, ok := results.GreptimeConfigFromEnv(); ok {
			logging.FromContext(ctx).Info("writing results to GreptimeDB",
				"endpoint", cfg.Endpoint, "database", cfg.Database,
				"cell_table", cfg.CellTable, "flow_table", cfg.FlowTable)
			return results.NewGreptimeDBWriter(ctx, cfg)
		}
	}
	if quiet {
		return nil, nil
	}
	if stdoutIsTerminal() {
		return results.NewColorStdoutWriter(&ov), nil
	}
	return results.NewJSONStdoutWriter(false), nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
