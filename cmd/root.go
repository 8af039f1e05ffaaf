package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/config"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/log"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
)

var version = "v0.1.0"

// rootFlags are the persistent flags shared by every subcommand.
var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:           "sigma",
	Short:         "sigma drives red/green/refactor cycles planned from a design document",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError ends the process with a specific exit code.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "sigma.yaml", "path to the sigma config file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "override log_level from sigma.yaml (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "", "override log_format from sigma.yaml (console|json)")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(tddCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(statusCmd)
}

// settings is the resolved configuration for one command invocation.
type settings struct {
	root   string
	cfg    *config.Config
	logger *zap.Logger
}

// loadSettings reads the config file relative to the working directory and
// applies the persistent flag overrides the user explicitly set.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	path := rootFlags.configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = rootFlags.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = rootFlags.logFormat
	}
	logger, err := log.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return &settings{root: root, cfg: cfg, logger: logger}, nil
}

// orchestrator builds an Orchestrator from the resolved configuration.
func (s *settings) orchestrator(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{orchestrator.WithLogger(s.logger)}, opts...)
	return orchestrator.New(orchestrator.Options{
		MemoryBankRoot: s.cfg.MemoryBankRoot,
		MetricsRoot:    s.cfg.MetricsRoot,
		WorkDir:        s.cfg.WorkDir,
		Parallelism:    s.cfg.Parallel,
		Threshold:      s.cfg.Coverage,
		Runner:         s.cfg.Runner,
		TestCommand:    s.cfg.TestCommand,
		TestTimeout:    s.cfg.TestTimeout,
		ProjectRoot:    s.root,
	}, opts...)
}

// commandContext returns the command's context, or Background when the
// command was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
