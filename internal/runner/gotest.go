package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/coverage"
)

// goProfile is where GoRunner asks `go test` to write its cover profile.
const goProfile = "coverage/cover.out"

// GoRunner runs the package containing a single _test.go file with
// `go test`. With coverage it measures ./src and converts the profile into
// a json-summary so the engine reads both runners the same way.
type GoRunner struct {
	Command []string
}

// Name implements Runner.
func (g *GoRunner) Name() string { return KindGo }

// Run implements Runner.
func (g *GoRunner) Run(ctx context.Context, req Request) (Result, error) {
	argv := []string{"go"}
	if len(g.Command) > 0 {
		argv = append([]string(nil), g.Command...)
	}
	argv = append(argv, "test", "-count=1")
	if req.Coverage {
		if err := os.MkdirAll(filepath.Join(req.Dir, "coverage"), 0o755); err != nil {
			return Result{}, fmt.Errorf("create coverage dir: %w", err)
		}
		_ = os.Remove(filepath.Join(req.Dir, goProfile))
		argv = append(argv, "-coverpkg=./src", "-coverprofile="+goProfile)
	}
	argv = append(argv, "./"+filepath.ToSlash(filepath.Dir(req.TestFile)))

	// The workspace is its own module; a go.work in an enclosing project
	// must not claim it.
	res, err := execute(ctx, req.Dir, argv, "GOWORK=off")
	if err != nil || !req.Coverage {
		return res, err
	}

	profile := filepath.Join(req.Dir, goProfile)
	if _, statErr := os.Stat(profile); statErr != nil {
		// No profile (e.g. a compile failure): leave the summary absent.
		return res, nil
	}
	totals, convErr := coverage.FromGoProfile(profile)
	if convErr != nil {
		return res, nil
	}
	// An unwritable summary reads back as zero coverage.
	_ = coverage.WriteSummary(req.Dir, totals)
	return res, nil
}
