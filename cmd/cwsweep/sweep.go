package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cwsweep/internal/config"
	"cwsweep/internal/engine/wifi"
	"cwsweep/internal/experiment"
	"cwsweep/internal/logging"
	"cwsweep/internal/plot"
	"cwsweep/internal/results"
	"cwsweep/internal/status"
	"cwsweep/internal/sweep"
	"cwsweep/internal/tui"
)

var (
	sweepStations      int
	sweepConfigPath    string
	sweepSchemaPath    string
	sweepTUI           bool
	sweepPrintOnly     bool
	sweepResultsFile   string
	sweepFlows         bool
	sweepFailurePolicy string
	sweepZeroDuration  string
	sweepLogLevel      string
	sweepLogFormat     string
	sweepLogFile       string
	sweepStatusAddr    string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the contention window sweep and write the plot",
	Long: "sweep runs one simulation per (cwMin, cwMax) pair of the configured exponent grid, " +
		"reduces each run to the mean per-flow throughput and writes a gnuplot script " +
		"with one curve per cwMax.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(sweepConfigPath, sweepSchemaPath)
		if err != nil {
			return err
		}
		applySweepFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		useTUI := sweepTUI && stdoutIsTerminal()
		logOut, closeLog, err := logDestination(sweepLogFile, useTUI)
		if err != nil {
			return err
		}
		defer closeLog()
		log, err := logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		if sweepTUI && !useTUI {
			log.Warn("stdout is not a terminal, TUI disabled")
		}
		ctx := logging.NewContext(cmd.Context(), log)
		return runSweep(ctx, cfg, sweepOptions{
			tui:         useTUI,
			printOnly:   sweepPrintOnly,
			resultsFile: sweepResultsFile,
			flows:       sweepFlows,
			statusAddr:  sweepStatusAddr,
		})
	},
}

func init() {
	f := sweepCmd.Flags()
	f.IntVar(&sweepStations, "stations", 3, "Number of wireless stations (overrides the config file)")
	f.StringVar(&sweepConfigPath, "config", "", "Path to sweep configuration YAML")
	f.StringVar(&sweepSchemaPath, "schema", "", "Path to CUE schema file (defaults to the embedded schema)")
	f.BoolVar(&sweepTUI, "tui", false, "Show live progress in a terminal UI")
	f.BoolVar(&sweepPrintOnly, "print-only", false, "Print results to STDOUT instead of writing to DB")
	f.StringVar(&sweepResultsFile, "results-file", "", "Path to export cell results (JSONL)")
	f.BoolVar(&sweepFlows, "flows", false, "Also export per-flow rows next to the results file")
	f.StringVar(&sweepFailurePolicy, "failure-policy", "", "Engine failure handling: abort or continue")
	f.StringVar(&sweepZeroDuration, "zero-duration", "", "Zero-duration flow handling: propagate or exclude")
	f.StringVar(&sweepLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&sweepLogFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&sweepLogFile, "log-file", "", "Write logs to this file instead of STDERR")
	f.StringVar(&sweepStatusAddr, "status-addr", "", "Serve live sweep status over HTTP on this address (e.g. :8080)")
}

func applySweepFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("stations") {
		cfg.Stations = sweepStations
	}
	if sweepFailurePolicy != "" {
		cfg.Sweep.FailurePolicy = sweepFailurePolicy
	}
	if sweepZeroDuration != "" {
		cfg.Experiment.ZeroDuration = sweepZeroDuration
	}
	if sweepLogLevel != "" {
		cfg.Log.Level = sweepLogLevel
	}
	if sweepLogFormat != "" {
		cfg.Log.Format = sweepLogFormat
	}
}

// logDestination returns STDERR, the named file, or a discard sink when the
// TUI owns the terminal and no file was given.
func logDestination(path string, tuiActive bool) (io.Writer, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if tuiActive {
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

type sweepOptions struct {
	tui         bool
	printOnly   bool
	resultsFile string
	flows       bool
	statusAddr  string
}

func newEngine(cfg config.EngineConfig, log *slog.Logger) *wifi.Engine {
	return wifi.New(wifi.Params{
		DataRate:   cfg.DataRateMbps * 1e6,
		BasicRate:  cfg.BasicRateMbps * 1e6,
		PacketSize: cfg.PacketSize,
		MaxPackets: cfg.MaxPackets,
		RetryLimit: cfg.RetryLimit,
		Seed:       cfg.Seed,
	}, log)
}

func runSweep(ctx context.Context, cfg *config.Config, opts sweepOptions) error {
	log := logging.FromContext(ctx)

	zeroPolicy, err := experiment.ParseZeroDurationPolicy(cfg.Experiment.ZeroDuration)
	if err != nil {
		return err
	}
	failPolicy, err := sweep.ParseFailurePolicy(cfg.Sweep.FailurePolicy)
	if err != nil {
		return err
	}

	sweepID := uuid.NewString()
	ov := results.Overview{
		SweepID:  sweepID,
		Stations: cfg.Stations,
		MinRange: [2]int{cfg.Sweep.WindowMin.From, cfg.Sweep.WindowMin.To},
		MaxRange: [2]int{cfg.Sweep.WindowMax.From, cfg.Sweep.WindowMax.To},
		StopTime: cfg.Experiment.StopTime.String(),
	}
	ctx = logging.NewContext(ctx, log.With("sweep_id", sweepID))

	w, cleanup, err := newWriters(ctx, ov, opts.printOnly, opts.tui, opts.resultsFile, opts.flows)
	if err != nil {
		return err
	}
	defer cleanup()
	writers := []sweep.CellWriter{results.NewRecorder(sweepID, w)}

	var view *tui.Writer
	if opts.tui {
		view = tui.NewWriter(ov)
		writers = append(writers, view)
	}

	var tracker *status.Tracker
	if opts.statusAddr != "" {
		tracker = status.NewTracker(ov)
		writers = append(writers, tracker)
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			log.Info("status server listening", "addr", opts.statusAddr)
			if err := status.NewServer(tracker).Start(srvCtx, opts.statusAddr); err != nil {
				log.Error("status server failed", "addr", opts.statusAddr, "err", err)
			}
		}()
	}

	runner := experiment.NewRunner(newEngine(cfg.Engine, logging.FromContext(ctx)), cfg.Experiment.StopTime, zeroPolicy)
	ctrl := sweep.NewController(runner, failPolicy, writers...)
	datasets, err := ctrl.Run(ctx, cfg.Stations, cfg.Sweep.WindowMin, cfg.Sweep.WindowMax)
	if view != nil {
		view.Finish(err)
		view.Close()
	}
	if tracker != nil {
		tracker.Finish(err)
	}
	if err != nil {
		return err
	}
	return writePlot(ctx, datasets, cfg.Plot)
}

// writePlot assembles the datasets and serializes every plot artifact. An
// image with nothing to draw only warns; the script is kept.
func writePlot(ctx context.Context, datasets []sweep.Dataset, pc config.PlotConfig) error {
	log := logging.FromContext(ctx)
	out := plot.Assemble(datasets, pc.Title, plot.Axes{X: pc.XLabel, Y: pc.YLabel})
	err := plot.Serialize(out, plot.Destination{
		ScriptPath: pc.ScriptPath,
		Target:     pc.Target,
		ImagePath:  pc.ImagePath,
	})
	switch {
	case errors.Is(err, plot.ErrNothingToRender):
		log.Warn("plot image skipped", "path", pc.ImagePath, "err", err)
	case err != nil:
		return err
	}
	log.Info("plot written", "script", pc.ScriptPath, "target", pc.Target, "image", pc.ImagePath, "datasets", len(out.Datasets))
	return nil
}
