// Package config provides Config loading and test-runner detection.
// Config is read from sigma.yaml in the project root. A missing file returns
// sane defaults without error. CLI flags (bound via cobra) override config file
// values at the highest precedence by mutating the returned struct after loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// Default values for Config fields.
const (
	DefaultMemoryBankRoot = "memory-bank/modules"
	DefaultMetricsRoot    = ".claude-collective/metrics/sigma"
	DefaultWorkDir        = ".claude-collective/sigma"
	DefaultRunner         = "jest"
	DefaultParallel       = 2
	DefaultTestTimeout    = 5 * time.Minute
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "console"
)

// Config holds all configuration for the sigma engine.
type Config struct {
	MemoryBankRoot string          `yaml:"memory_bank_root"`
	MetricsRoot    string          `yaml:"metrics_root"`
	WorkDir        string          `yaml:"work_dir"`
	Runner         string          `yaml:"runner"`
	TestCommand    string          `yaml:"test_command"`
	Parallel       int             `yaml:"parallel"`
	Coverage       types.Threshold `yaml:"coverage"`
	TestTimeout    time.Duration   `yaml:"-"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
}

// Defaults returns a Config populated with sane defaults. The coverage
// threshold defaults to all zero, which every coverage record satisfies.
// Runner is detected from marker files in projectRoot.
func Defaults(projectRoot string) Config {
	return Config{
		MemoryBankRoot: DefaultMemoryBankRoot,
		MetricsRoot:    DefaultMetricsRoot,
		WorkDir:        DefaultWorkDir,
		Runner:         DetectRunner(projectRoot),
		Parallel:       DefaultParallel,
		TestTimeout:    DefaultTestTimeout,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// partialConfig is used during YAML parsing to distinguish between a field
// being absent (nil pointer) and a field being explicitly set to its zero value.
type partialConfig struct {
	MemoryBankRoot *string          `yaml:"memory_bank_root"`
	MetricsRoot    *string          `yaml:"metrics_root"`
	WorkDir        *string          `yaml:"work_dir"`
	Runner         *string          `yaml:"runner"`
	TestCommand    *string          `yaml:"test_command"`
	Parallel       *int             `yaml:"parallel"`
	Coverage       *partialCoverage `yaml:"coverage"`
	TestTimeout    *string          `yaml:"test_timeout"`
	LogLevel       *string          `yaml:"log_level"`
	LogFormat      *string          `yaml:"log_format"`
}

type partialCoverage struct {
	Lines      *float64 `yaml:"lines"`
	Functions  *float64 `yaml:"functions"`
	Branches   *float64 `yaml:"branches"`
	Statements *float64 `yaml:"statements"`
}

// LoadConfig reads sigma.yaml at path and returns a Config.
// If the file does not exist, defaults are returned without error.
// Fields absent from the file are filled with their default values.
// Fields present in the file override the corresponding default.
// Relative roots are kept relative; callers resolve them against the
// project root.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, err
	}

	var partial partialConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if partial.MemoryBankRoot != nil {
		cfg.MemoryBankRoot = *partial.MemoryBankRoot
	}
	if partial.MetricsRoot != nil {
		cfg.MetricsRoot = *partial.MetricsRoot
	}
	if partial.WorkDir != nil {
		cfg.WorkDir = *partial.WorkDir
	}
	if partial.Runner != nil {
		cfg.Runner = *partial.Runner
	}
	if partial.TestCommand != nil {
		cfg.TestCommand = *partial.TestCommand
	}
	if partial.Parallel != nil {
		cfg.Parallel = *partial.Parallel
	}
	if c := partial.Coverage; c != nil {
		if c.Lines != nil {
			cfg.Coverage.Lines = *c.Lines
		}
		if c.Functions != nil {
			cfg.Coverage.Functions = *c.Functions
		}
		if c.Branches != nil {
			cfg.Coverage.Branches = *c.Branches
		}
		if c.Statements != nil {
			cfg.Coverage.Statements = *c.Statements
		}
	}
	if partial.TestTimeout != nil {
		d, err := time.ParseDuration(*partial.TestTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse %s: test_timeout: %w", path, err)
		}
		cfg.TestTimeout = d
	}
	if partial.LogLevel != nil {
		cfg.LogLevel = *partial.LogLevel
	}
	if partial.LogFormat != nil {
		cfg.LogFormat = *partial.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks value ranges that the YAML schema cannot express.
func (c *Config) Validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.TestTimeout < 0 {
		return fmt.Errorf("test_timeout must not be negative, got %s", c.TestTimeout)
	}
	switch c.Runner {
	case "jest", "go":
	default:
		return fmt.Errorf("unknown runner %q: supported runners are \"jest\" and \"go\"", c.Runner)
	}
	return c.Coverage.Validate()
}

// DetectRunner returns the test runner identifier based on marker files
// found in dir: "go" when go.mod exists, otherwise "jest" (whether or not a
// package.json is present).
func DetectRunner(dir string) string {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return "go"
	}
	return DefaultRunner
}
