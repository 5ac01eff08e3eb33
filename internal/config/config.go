// Package config holds the agent's process-wide configuration.
//
// A Config is built once at startup from Default, an optional YAML file and
// command-line overrides, and is passed by value from then on.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAgentDir is where module executables live.
	DefaultAgentDir = "/var/fcm/agent"
	// DefaultDataDir is where the data files paired with modules live.
	DefaultDataDir = "/var/fcm/data"
	// DefaultInterval is the sleep between cycles.
	DefaultInterval = 600 * time.Second
	// DefaultMaxCycleFailures is how many cycles in a row may fail before the agent gives up.
	DefaultMaxCycleFailures = 3
)

// Log formats accepted by LogFormat.
const (
	LogFormatAuto    = "auto"
	LogFormatText    = "text"
	LogFormatJSON    = "json"
	LogFormatJournal = "journal"
)

// ErrInvalid is wrapped by every validation and parse error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the agent configuration.
type Config struct {
	// AgentDir is the module directory.
	AgentDir string
	// DataDir is the data directory.
	DataDir string
	// Interval is the sleep between the end of one cycle and the next.
	Interval time.Duration
	// Once stops the agent after the first cycle.
	Once bool
	// Verbose enables debug logging.
	Verbose bool

	LogFormat   string
	MetricsAddr string

	// MaxCycleFailures is the number of consecutive failed cycles after which
	// the agent exits. Zero means never.
	MaxCycleFailures int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AgentDir:         DefaultAgentDir,
		DataDir:          DefaultDataDir,
		Interval:         DefaultInterval,
		LogFormat:        LogFormatAuto,
		MaxCycleFailures: DefaultMaxCycleFailures,
	}
}

// File models the optional YAML configuration file. Unset keys leave the
// base configuration untouched.
type File struct {
	AgentDir         *string `yaml:"agent_dir"`
	DataDir          *string `yaml:"data_dir"`
	Sleep            *int    `yaml:"sleep"`
	Once             *bool   `yaml:"once"`
	Verbose          *bool   `yaml:"verbose"`
	LogFormat        *string `yaml:"log_format"`
	MetricsAddr      *string `yaml:"metrics_addr"`
	MaxCycleFailures *int    `yaml:"max_cycle_failures"`
}

// LoadFile reads path and applies it on top of base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("%w: reading %s: %w", ErrInvalid, path, err)
	}
	cfg, err := Parse(data, base)
	if err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document and applies it on top of base.
// Unknown keys are rejected.
func Parse(data []byte, base Config) (Config, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return f.Apply(base), nil
}

// Apply returns base with every key set in f overridden.
func (f File) Apply(base Config) Config {
	cfg := base
	if f.AgentDir != nil {
		cfg.AgentDir = *f.AgentDir
	}
	if f.DataDir != nil {
		cfg.DataDir = *f.DataDir
	}
	if f.Sleep != nil {
		cfg.Interval = time.Duration(*f.Sleep) * time.Second
	}
	if f.Once != nil {
		cfg.Once = *f.Once
	}
	if f.Verbose != nil {
		cfg.Verbose = *f.Verbose
	}
	if f.LogFormat != nil {
		cfg.LogFormat = *f.LogFormat
	}
	if f.MetricsAddr != nil {
		cfg.MetricsAddr = *f.MetricsAddr
	}
	if f.MaxCycleFailures != nil {
		cfg.MaxCycleFailures = *f.MaxCycleFailures
	}
	return cfg
}

// Validate checks values that cannot be used. It does not touch the filesystem.
func (c Config) Validate() error {
	if c.AgentDir == "" {
		return fmt.Errorf("%w: agent directory is empty", ErrInvalid)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory is empty", ErrInvalid)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: negative sleep interval %s", ErrInvalid, c.Interval)
	}
	if c.MaxCycleFailures < 0 {
		return fmt.Errorf("%w: negative max cycle failures %d", ErrInvalid, c.MaxCycleFailures)
	}
	switch c.LogFormat {
	case LogFormatAuto, LogFormatText, LogFormatJSON, LogFormatJournal:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}
