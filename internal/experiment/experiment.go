// Package experiment runs one simulation per configuration and reduces its
// flow statistics into an average throughput.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cwsweep/internal/engine"
	"cwsweep/internal/flowstats"
	"cwsweep/internal/logging"
)

// ErrInvalidConfig marks configuration errors detected before any engine call.
var ErrInvalidConfig = errors.New("invalid experiment configuration")

// Config is one grid cell. WindowMax >= WindowMin is conventional, not enforced.
type Config struct {
	StationCount int     `json:"station_count"`
	WindowMin    float64 `json:"window_min"`
	WindowMax    float64 `json:"window_max"`
}

// Validate reports ErrInvalidConfig for station counts below 2 or window
// bounds outside (0, engine.MaxWindow].
func (c Config) Validate() error {
	if c.StationCount < 2 {
		return fmt.Errorf("%w: station count %d, need at least 2", ErrInvalidConfig, c.StationCount)
	}
	if !(c.WindowMin > 0) || !(c.WindowMax > 0) {
		return fmt.Errorf("%w: window bounds must be positive, got min=%v max=%v", ErrInvalidConfig, c.WindowMin, c.WindowMax)
	}
	if c.WindowMin > engine.MaxWindow || c.WindowMax > engine.MaxWindow {
		return fmt.Errorf("%w: window bounds must not exceed %d, got min=%v max=%v", ErrInvalidConfig, engine.MaxWindow, c.WindowMin, c.WindowMax)
	}
	return nil
}

// ZeroDurationPolicy selects how flows with LastRxTime == FirstTxTime enter
// the mean.
type ZeroDurationPolicy int

const (
	// Propagate keeps the raw IEEE-754 result (+Inf or NaN) in the mean.
	Propagate ZeroDurationPolicy = iota
	// Exclude drops such flows from both the sum and the count.
	Exclude
)

func (p ZeroDurationPolicy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Exclude:
		return "exclude"
	default:
		return fmt.Sprintf("ZeroDurationPolicy(%d)", int(p))
	}
}

// ParseZeroDurationPolicy accepts "propagate" (or empty) and "exclude".
func ParseZeroDurationPolicy(s string) (ZeroDurationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "propagate":
		return Propagate, nil
	case "exclude":
		return Exclude, nil
	default:
		return 0, fmt.Errorf("unknown zero-duration policy %q", s)
	}
}

// FlowThroughput pairs a record with its rate in Mbps.
type FlowThroughput struct {
	flowstats.Record
	ThroughputMbps float64 `json:"throughput_mbps"`
	Excluded       bool    `json:"excluded,omitempty"`
}

// AggregateResult is the reduced outcome of one run.
type AggregateResult struct {
	Config                Config           `json:"config"`
	AverageThroughputMbps float64          `json:"avg_throughput_mbps"`
	Flows                 []FlowThroughput `json:"flows"`
}

// Runner executes single experiments against an engine.
type Runner struct {
	engine   engine.Engine
	stopTime time.Duration
	policy   ZeroDurationPolicy
}

// NewRunner returns a runner that stops each simulation at stopTime.
// A non-positive stopTime means engine.DefaultStopTime.
func NewRunner(e engine.Engine, stopTime time.Duration, policy ZeroDurationPolicy) *Runner {
	if stopTime <= 0 {
		stopTime = engine.DefaultStopTime
	}
	return &Runner{engine: e, stopTime: stopTime, policy: policy}
}

// Run issues exactly one simulation for cfg and reduces its flow records.
// Engine failures are returned wrapped with engine.ErrEngine; degenerate
// statistics are not errors.
func (r *Runner) Run(ctx context.Context, cfg Config) (AggregateResult, error) {
	log := logging.FromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return AggregateResult{}, err
	}

	inst, err := r.engine.Configure(engine.Config{
		Stations:  cfg.StationCount,
		WindowMin: cfg.WindowMin,
		WindowMax: cfg.WindowMax,
		StopTime:  r.stopTime,
	})
	if err != nil {
		if errors.Is(err, engine.ErrEngine) {
			return AggregateResult{}, err
		}
		return AggregateResult{}, engine.Failure("configure", err)
	}
	defer inst.Destroy()

	if err := inst.Run(); err != nil {
		if errors.Is(err, engine.ErrEngine) {
			return AggregateResult{}, err
		}
		return AggregateResult{}, engine.Failure("run", err)
	}
	records, err := inst.FlowStats()
	if err != nil {
		if errors.Is(err, engine.ErrEngine) {
			return AggregateResult{}, err
		}
		return AggregateResult{}, engine.Failure("flow stats", err)
	}

	res := Reduce(cfg, records, r.policy)
	for _, f := range res.Flows {
		log.Debug("flow",
			"flow_id", f.ID,
			"tuple", f.Tuple.String(),
			"tx_packets", f.TxPackets,
			"tx_bytes", f.TxBytes,
			"rx_bytes", f.RxBytes,
			"throughput_mbps", f.ThroughputMbps,
			"excluded", f.Excluded)
	}
	return res, nil
}
