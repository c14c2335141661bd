// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cwsweep/internal/sweep"
)

// SweepConfig selects the exponent grid.
type SweepConfig struct {
	WindowMin     sweep.ExponentRange `yaml:"window_min"`
	WindowMax     sweep.ExponentRange `yaml:"window_max"`
	FailurePolicy string              `yaml:"failure_policy"`
}

// ExperimentConfig controls a single run.
type ExperimentConfig struct {
	StopTime     time.Duration `yaml:"stop_time"`
	ZeroDuration string        `yaml:"zero_duration"`
}

// EngineConfig tunes the built-in BSS simulator.
type EngineConfig struct {
	DataRateMbps  float64 `yaml:"data_rate_mbps"`
	BasicRateMbps float64 `yaml:"basic_rate_mbps"`
	PacketSize    int     `yaml:"packet_size"`
	MaxPackets    int     `yaml:"max_packets"`
	RetryLimit    int     `yaml:"retry_limit"`
	Seed          uint64  `yaml:"seed"`
}

// PlotConfig names the plot labels and artifacts.
type PlotConfig struct {
	Title      string `yaml:"title"`
	XLabel     string `yaml:"x_label"`
	YLabel     string `yaml:"y_label"`
	ScriptPath string `yaml:"script_path"`
	Target     string `yaml:"target"`
	ImagePath  string `yaml:"image_path"`
}

// LogConfig selects log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	Stations   int              `yaml:"stations"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Engine     EngineConfig     `yaml:"engine"`
	Plot       PlotConfig       `yaml:"plot"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the reference experiment: 3 stations, window max 2^4..2^6,
// window min 2^2..2^4, 10s runs.
func Default() *Config {
	return &Config{
		Stations: 3,
		Sweep: SweepConfig{
			WindowMin:     sweep.ExponentRange{From: 2, To: 4},
			WindowMax:     sweep.ExponentRange{From: 4, To: 6},
			FailurePolicy: "abort",
		},
		Experiment: ExperimentConfig{
			StopTime:     10 * time.Second,
			ZeroDuration: "propagate",
		},
		Engine: EngineConfig{
			DataRateMbps:  54,
			BasicRateMbps: 6,
			PacketSize:    4096,
			MaxPackets:    30,
			RetryLimit:    7,
			Seed:          12345,
		},
		Plot: PlotConfig{
			Title:      "Varying CW sizes",
			XLabel:     "cwMin",
			YLabel:     "Throughput (Mbps)",
			ScriptPath: "cwExpt.plt",
			Target:     "cwExpt.pdf",
			ImagePath:  "cwExpt.png",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configPath over the defaults after validating it against the
// CUE schema. An empty configPath returns the defaults. An empty
// cueSchemaPath uses the embedded schema.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	schema := embeddedSchema
	if cueSchemaPath != "" {
		if schema, err = os.ReadFile(cueSchemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	if err := ValidateWithCue(configPath, data, schema); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks constraints that hold after defaults are merged.
func (c *Config) Validate() error {
	if c.Stations < 2 {
		return fmt.Errorf("stations must be at least 2, got %d", c.Stations)
	}
	if err := c.Sweep.WindowMin.Validate(); err != nil {
		return fmt.Errorf("sweep.window_min: %w", err)
	}
	if err := c.Sweep.WindowMax.Validate(); err != nil {
		return fmt.Errorf("sweep.window_max: %w", err)
	}
	if c.Experiment.StopTime <= 0 {
		return fmt.Errorf("experiment.stop_time must be positive, got %s", c.Experiment.StopTime)
	}
	if c.Plot.ScriptPath == "" {
		return fmt.Errorf("plot.script_path must be set")
	}
	return nil
}
