package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/runner"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CheckDependencies verifies that the binaries a tdd run needs are on PATH:
//   - command's executable when a test_command override is set
//   - "go" for the go runner
//   - "node" for the jest runner, plus "npx" when projectRoot has no local
//     node_modules/.bin/jest
//
// Returns a descriptive error listing every missing binary; nil if all are
// present.
func CheckDependencies(kind, command, projectRoot string) error {
	var required []string

	switch {
	case strings.TrimSpace(command) != "":
		argv, err := runner.SplitArgs(command)
		if err != nil {
			return fmt.Errorf("parse test command: %w", err)
		}
		required = append(required, argv[0])
	case kind == runner.KindGo:
		required = append(required, "go")
	case kind == runner.KindJest:
		required = append(required, "node")
		local := filepath.Join(projectRoot, "node_modules", ".bin", "jest")
		if _, err := os.Stat(local); err != nil {
			required = append(required, "npx")
		}
	default:
		return fmt.Errorf("unknown runner %q", kind)
	}

	var missing []string
	for _, bin := range required {
		if _, err := lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required binaries on PATH: %s",
			strings.Join(missing, ", "))
	}
	return nil
}
