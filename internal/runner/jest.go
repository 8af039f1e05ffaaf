package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
)

// JestConfigFile is the per-workspace config written by the jest scaffold kit.
const JestConfigFile = "jest.cycle.config.js"

// JestRunner runs a single test file with Jest. The binary is, in order of
// preference: Command, <ProjectRoot>/node_modules/.bin/jest, `npx -y jest`.
type JestRunner struct {
	ProjectRoot string
	Command     []string
}

// Name implements Runner.
func (j *JestRunner) Name() string { return KindJest }

// Run implements Runner.
func (j *JestRunner) Run(ctx context.Context, req Request) (Result, error) {
	args := []string{"--config", JestConfigFile, "--runTestsByPath", req.TestFile}
	if req.Coverage {
		args = append(args, "--coverage")
	}
	return execute(ctx, req.Dir, append(j.binary(), args...))
}

// binary returns the argv prefix Run uses.
func (j *JestRunner) binary() []string {
	if len(j.Command) > 0 {
		return append([]string(nil), j.Command...)
	}
	name := "jest"
	if runtime.GOOS == "windows" {
		name = "jest.cmd"
	}
	local := filepath.Join(j.ProjectRoot, "node_modules", ".bin", name)
	if j.ProjectRoot != "" {
		if _, err := os.Stat(local); err == nil {
			return []string{local}
		}
	}
	npx := "npx"
	if runtime.GOOS == "windows" {
		npx = "npx.cmd"
	}
	return []string{npx, "-y", "jest"}
}
