// Package config loads the l1tnp run configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ib-77/l1tnp/internal/histo"
	"github.com/ib-77/l1tnp/internal/trigger"
	"github.com/ib-77/l1tnp/pkg/tnp"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Sink kinds.
const (
	SinkJSONL  = "jsonl"
	SinkSQLite = "sqlite"
)

// Config holds all l1tnp configuration.
type Config struct {
	Dataset    DatasetConfig     `yaml:"dataset"`
	Reduction  tnp.Config        `yaml:"reduction"`
	Triggers   []trigger.Trigger `yaml:"triggers"`
	Histograms HistogramConfig   `yaml:"histograms"`
	Output     OutputConfig      `yaml:"output"`
	Runner     RunnerConfig      `yaml:"runner"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// DatasetConfig describes the single input file of a run.
type DatasetConfig struct {
	Name  string `yaml:"name"`
	Input string `yaml:"input"`
	IsMC  bool   `yaml:"is_mc"`
	// ProcessID is used for events without a process_id column.
	ProcessID int64 `yaml:"process_id"`
	ChunkSize int   `yaml:"chunk_size"`
}

type HistogramConfig struct {
	Variables []histo.Variable `yaml:"variables"`
	// Triggers restricts the numerator categories; empty means all.
	Triggers []string `yaml:"triggers,omitempty"`
	// PlotFormat is the file extension of efficiency plots; empty disables
	// plotting.
	PlotFormat string `yaml:"plot_format"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Sink string `yaml:"sink"`
	// MetricsFile is a Prometheus textfile written at the end of a run;
	// empty disables it.
	MetricsFile string `yaml:"metrics_file"`
}

type RunnerConfig struct {
	Workers    int `yaml:"workers"`
	BufferSize int `yaml:"buffer_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Name:      "data_mu_c",
			ChunkSize: 10000,
		},
		Reduction: tnp.DefaultConfig(),
		Triggers:  trigger.Defaults(),
		Histograms: HistogramConfig{
			Variables:  histo.DefaultVariables(),
			PlotFormat: "png",
		},
		Output: OutputConfig{
			Dir:  "output",
			Sink: SinkJSONL,
		},
		Runner: RunnerConfig{
			Workers:    4,
			BufferSize: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults. A
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = nil
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies L1TNP_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("L1TNP_INPUT"); v != "" {
		c.Dataset.Input = v
	}
	if v := os.Getenv("L1TNP_IS_MC"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: L1TNP_IS_MC: %v", ErrInvalid, err)
		}
		c.Dataset.IsMC = b
	}
	if v := os.Getenv("L1TNP_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: L1TNP_CHUNK_SIZE: %v", ErrInvalid, err)
		}
		c.Dataset.ChunkSize = n
	}
	if v := os.Getenv("L1TNP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: L1TNP_WORKERS: %v", ErrInvalid, err)
		}
		c.Runner.Workers = n
	}
	if v := os.Getenv("L1TNP_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("L1TNP_SINK"); v != "" {
		c.Output.Sink = strings.ToLower(v)
	}
	if v := os.Getenv("L1TNP_METRICS_FILE"); v != "" {
		c.Output.MetricsFile = v
	}
	if v := os.Getenv("L1TNP_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks every section. Reduction and trigger errors keep their
// own sentinels.
func (c *Config) Validate() error {
	if err := c.Reduction.Validate(); err != nil {
		return err
	}
	if _, err := c.TriggerRegistry(); err != nil {
		return err
	}
	for _, v := range c.Histograms.Variables {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.Dataset.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.Dataset.ChunkSize)
	}
	if c.Runner.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Runner.Workers)
	}
	if c.Runner.BufferSize < 0 {
		return fmt.Errorf("%w: buffer_size must not be negative, got %d", ErrInvalid, c.Runner.BufferSize)
	}
	switch c.Output.Sink {
	case SinkJSONL, SinkSQLite:
	default:
		return fmt.Errorf("%w: unknown sink %q (valid: %s, %s)", ErrInvalid, c.Output.Sink, SinkJSONL, SinkSQLite)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// TriggerRegistry builds the trigger registry restricted to the histogram
// trigger selection.
func (c *Config) TriggerRegistry() (*trigger.Registry, error) {
	reg, err := trigger.NewRegistry(c.Triggers)
	if err != nil {
		return nil, err
	}
	return reg.Select(c.Histograms.Triggers)
}

// RecordsPath is where the reduce command writes probe records.
func (c *Config) RecordsPath() string {
	ext := ".jsonl"
	if c.Output.Sink == SinkSQLite {
		ext = ".db"
	}
	return filepath.Join(c.Output.Dir, c.datasetName()+"_events"+ext)
}

// StatsPath is where the reduce command writes the cutflow.
func (c *Config) StatsPath() string {
	return filepath.Join(c.Output.Dir, c.datasetName()+"_stats.json")
}

func (c *Config) HistogramPath() string {
	return filepath.Join(c.Output.Dir, c.datasetName()+"_hists.yoda")
}

func (c *Config) EfficiencyPath() string {
	return filepath.Join(c.Output.Dir, c.datasetName()+"_efficiency.yaml")
}

func (c *Config) PlotDir() string {
	return filepath.Join(c.Output.Dir, "plots")
}

func (c *Config) datasetName() string {
	if c.Dataset.Name == "" {
		return "dataset"
	}
	return c.Dataset.Name
}
