// Package engine defines the contract between the sweep harness and a
// discrete-event network simulator.
package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"cwsweep/internal/flowstats"
)

// DefaultStopTime is the simulated-time horizon of one run.
const DefaultStopTime = 10 * time.Second

// MaxWindow is the largest contention window bound an engine accepts.
const MaxWindow = math.MaxInt32

// ErrEngine marks a hard failure of the simulator. Runs failing with it
// produced no usable flow statistics.
var ErrEngine = errors.New("simulation engine failure")

// Config is the set of engine parameters the harness controls.
type Config struct {
	Stations  int
	WindowMin float64
	WindowMax float64
	StopTime  time.Duration
}

// Validate checks the parameters before an instance is built.
func (c Config) Validate() error {
	if c.Stations < 2 {
		return fmt.Errorf("stations must be at least 2, got %d", c.Stations)
	}
	if !(c.WindowMin > 0) {
		return fmt.Errorf("window min must be positive, got %v", c.WindowMin)
	}
	if !(c.WindowMax > 0) {
		return fmt.Errorf("window max must be positive, got %v", c.WindowMax)
	}
	if c.WindowMin > MaxWindow || c.WindowMax > MaxWindow {
		return fmt.Errorf("window bounds must not exceed %d, got min=%v max=%v", MaxWindow, c.WindowMin, c.WindowMax)
	}
	if c.StopTime <= 0 {
		return fmt.Errorf("stop time must be positive, got %s", c.StopTime)
	}
	return nil
}

// Engine builds disposable simulation instances. Instances share no state.
type Engine interface {
	Configure(cfg Config) (Instance, error)
}

// Instance is one configured simulation.
type Instance interface {
	// Run executes the event loop until the stop time. It blocks.
	Run() error
	// FlowStats returns the flow records of a completed run.
	FlowStats() ([]flowstats.Record, error)
	// Destroy releases the instance. It is safe to call more than once.
	Destroy()
}

// Failure wraps err so that errors.Is(err, ErrEngine) holds.
func Failure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrEngine, err)
}
