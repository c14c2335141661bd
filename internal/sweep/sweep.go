// Package sweep drives experiments over a power-of-two grid of contention
// window bounds and organizes the results into plot datasets.
package sweep

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cwsweep/internal/experiment"
	"cwsweep/internal/logging"
)

// ExperimentRunner runs one grid cell.
type ExperimentRunner interface {
	Run(ctx context.Context, cfg experiment.Config) (experiment.AggregateResult, error)
}

// CellWriter observes every completed cell in grid order.
type CellWriter interface {
	WriteCell(CellResult) error
}

// ExponentRange is an inclusive ascending range of base-2 exponents.
type ExponentRange struct {
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
}

// MaxExponent is the largest exponent a range may reach.
const MaxExponent = 30

// Validate rejects descending ranges and exponents above MaxExponent.
func (r ExponentRange) Validate() error {
	if r.From > r.To {
		return fmt.Errorf("%w: exponent range %d..%d is descending", experiment.ErrInvalidConfig, r.From, r.To)
	}
	if r.To > MaxExponent {
		return fmt.Errorf("%w: exponent %d exceeds %d", experiment.ErrInvalidConfig, r.To, MaxExponent)
	}
	return nil
}

// Exponents lists From..To.
func (r ExponentRange) Exponents() []int {
	if r.From > r.To {
		return nil
	}
	out := make([]int, 0, r.To-r.From+1)
	for e := r.From; e <= r.To; e++ {
		out = append(out, e)
	}
	return out
}

// Bound maps an exponent to a window bound, 2^e.
func Bound(e int) float64 {
	return math.Ldexp(1, e)
}

// FailurePolicy decides what an engine failure does to the rest of the sweep.
type FailurePolicy int

const (
	// Abort stops at the first failing cell.
	Abort FailurePolicy = iota
	// Continue records the failed cell as NaN and moves on.
	Continue
)

func (p FailurePolicy) String() string {
	if p == Continue {
		return "continue"
	}
	return "abort"
}

// ParseFailurePolicy accepts "abort" (or empty) and "continue".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "abort":
		return Abort, nil
	case "continue":
		return Continue, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Point is one (window min, throughput) sample.
type Point struct {
	WindowMin      float64 `json:"window_min"`
	ThroughputMbps float64 `json:"throughput_mbps"`
}

// Dataset is one curve: all cells sharing a window max, ordered by window min.
type Dataset struct {
	Label     string  `json:"label"`
	WindowMax float64 `json:"window_max"`
	Points    []Point `json:"points"`
}

// Label formats the legend entry for a window max, e.g. "cwMax : 16".
func Label(windowMax float64) string {
	return "cwMax : " + strconv.FormatFloat(windowMax, 'g', 6, 64)
}

// CellResult describes one completed grid cell.
type CellResult struct {
	Index       int                        `json:"index"`
	Total       int                        `json:"total"`
	MaxExponent int                        `json:"max_exponent"`
	MinExponent int                        `json:"min_exponent"`
	Result      experiment.AggregateResult `json:"result"`
	Err         error                      `json:"-"`
	Elapsed     time.Duration              `json:"elapsed"`
}

// Controller runs sweeps sequentially, one cell at a time.
type Controller struct {
	runner  ExperimentRunner
	writers []CellWriter
	policy  FailurePolicy
}

// NewController returns a controller that reports cells to writers.
func NewController(r ExperimentRunner, policy FailurePolicy, writers ...CellWriter) *Controller {
	return &Controller{runner: r, writers: writers, policy: policy}
}

// Run sweeps e_max over maxRange (outer) and e_min over minRange (inner).
// Configuration errors are returned before any experiment runs. Under Abort
// an engine failure returns the datasets completed so far with the error;
// the dataset in progress is dropped.
func (c *Controller) Run(ctx context.Context, stations int, minRange, maxRange ExponentRange) ([]Dataset, error) {
	log := logging.FromContext(ctx)
	if stations < 2 {
		return nil, fmt.Errorf("%w: station count %d, need at least 2", experiment.ErrInvalidConfig, stations)
	}
	if err := minRange.Validate(); err != nil {
		return nil, fmt.Errorf("window min: %w", err)
	}
	if err := maxRange.Validate(); err != nil {
		return nil, fmt.Errorf("window max: %w", err)
	}

	maxExps := maxRange.Exponents()
	minExps := minRange.Exponents()
	total := len(maxExps) * len(minExps)
	log.Info("starting sweep", "stations", stations, "cells", total,
		"min_exponents", fmt.Sprintf("%d..%d", minRange.From, minRange.To),
		"max_exponents", fmt.Sprintf("%d..%d", maxRange.From, maxRange.To),
		"failure_policy", c.policy.String())

	datasets := make([]Dataset, 0, len(maxExps))
	idx := 0
	for _, eMax := range maxExps {
		windowMax := Bound(eMax)
		ds := Dataset{Label: Label(windowMax), WindowMax: windowMax, Points: make([]Point, 0, len(minExps))}
		for _, eMin := range minExps {
			cfg := experiment.Config{StationCount: stations, WindowMin: Bound(eMin), WindowMax: windowMax}
			start := time.Now()
			res, err := c.runner.Run(ctx, cfg)
			cell := CellResult{
				Index:       idx,
				Total:       total,
				MaxExponent: eMax,
				MinExponent: eMin,
				Result:      res,
				Err:         err,
				Elapsed:     time.Since(start),
			}
			idx++
			if err != nil {
				cell.Result = experiment.AggregateResult{Config: cfg, AverageThroughputMbps: math.NaN()}
				log.Error("experiment failed", "window_min", cfg.WindowMin, "window_max", cfg.WindowMax, "err", err)
				c.emit(ctx, cell)
				if c.policy == Abort {
					return datasets, fmt.Errorf("cell cwMin=%v cwMax=%v: %w", cfg.WindowMin, cfg.WindowMax, err)
				}
			} else {
				log.Info("experiment complete",
					"window_min", cfg.WindowMin,
					"window_max", cfg.WindowMax,
					"avg_throughput_mbps", res.AverageThroughputMbps,
					"flows", len(res.Flows),
					"elapsed", cell.Elapsed)
				c.emit(ctx, cell)
			}
			ds.Points = append(ds.Points, Point{WindowMin: cfg.WindowMin, ThroughputMbps: cell.Result.AverageThroughputMbps})
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func (c *Controller) emit(ctx context.Context, cell CellResult) {
	log := logging.FromContext(ctx)
	for _, w := range c.writers {
		if err := w.WriteCell(cell); err != nil {
			log.Error("cell write failed", "index", cell.Index, "err", err)
		}
	}
}
