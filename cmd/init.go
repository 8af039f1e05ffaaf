package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/config"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/log"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/templates"
)

var initFlags struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init <module>",
	Short: "Scaffold sigma.yaml and a starter design document for a module",
	Long: "Write sigma.yaml to the project root (when absent) and a starter " +
		"<memory-bank>/<module>/design.md to edit before running `sigma plan`.",
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	return initProject(dir, args[0], initFlags.force)
}

// initProject is the testable core of the init command. It writes
// sigma.yaml into dir and the module's design.md under the configured
// memory-bank root.
func initProject(dir, module string, force bool) error {
	if err := orchestrator.ValidateModuleName(module); err != nil {
		return err
	}
	files, err := templates.InitFiles(module)
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "sigma.yaml")
	if err := writeInitFile(configPath, files["sigma.yaml"], force, true); err != nil {
		return err
	}

	// The design lands wherever the (possibly pre-existing) config points.
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	root := cfg.MemoryBankRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	designPath := filepath.Join(root, module, orchestrator.DesignFile)
	if err := writeInitFile(designPath, files["design.md"], force, false); err != nil {
		return err
	}

	log.Info(fmt.Sprintf("module %s initialized; describe its interfaces in %s, then run: sigma plan %s",
		module, designPath, module))
	return nil
}

// writeInitFile writes content to path. Without force an existing file is
// either skipped with a warning (skippable) or reported as an error.
func writeInitFile(path string, content []byte, force, skippable bool) error {
	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			if skippable {
				log.Warning(fmt.Sprintf("%s already exists, skipping (use --force to overwrite)", path))
				return nil
			}
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Success(fmt.Sprintf("created %s", path))
	return nil
}
