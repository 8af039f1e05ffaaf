// Package runner defines the test-runner capability the cycle engine drives
// and its Jest and Go implementations.
//
// A runner executes one test file inside a cycle workspace. A non-zero exit
// is a normal Result, not an error: errors are reserved for a process that
// could not be started (exception) or ran past its deadline (ErrTimeout).
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when the run's context deadline expires before the
// test process exits.
var ErrTimeout = errors.New("test run timed out")

// Kinds accepted by New.
const (
	KindJest = "jest"
	KindGo   = "go"
)

// Request describes one invocation.
type Request struct {
	// Dir is the cycle workspace; the process runs with Dir as its working directory.
	Dir string
	// TestFile is the single test file to run, relative to Dir.
	TestFile string
	// Coverage requests a summary at <Dir>/coverage/coverage-summary.json.
	Coverage bool
}

// Result is the outcome of a process that ran to completion (or was killed
// on timeout, in which case ExitCode is -1).
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner runs a single test file in a workspace.
type Runner interface {
	Name() string
	Run(ctx context.Context, req Request) (Result, error)
}

// Options configure a runner built by New.
type Options struct {
	// Command overrides the runner executable (shell-tokenized), e.g.
	// "npx -y jest" or "/usr/local/go/bin/go".
	Command string
	// ProjectRoot is searched for a local node_modules/.bin/jest.
	ProjectRoot string
}

// New returns the runner for kind.
func New(kind string, opts Options) (Runner, error) {
	var prefix []string
	if strings.TrimSpace(opts.Command) != "" {
		parts, err := SplitArgs(opts.Command)
		if err != nil {
			return nil, fmt.Errorf("parse test command: %w", err)
		}
		prefix = parts
	}
	switch kind {
	case KindJest:
		return &JestRunner{ProjectRoot: opts.ProjectRoot, Command: prefix}, nil
	case KindGo:
		return &GoRunner{Command: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown runner %q: supported runners are %q and %q", kind, KindJest, KindGo)
	}
}

// outputTailLines bounds the output kept on a Result.
const outputTailLines = 50

// execute runs argv in dir, with env appended to the inherited environment,
// and classifies the outcome.
func execute(ctx context.Context, dir string, argv []string, env ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	out, err := cmd.CombinedOutput()
	res := Result{Output: tail(out, outputTailLines), Duration: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%w after %s", ErrTimeout, res.Duration.Round(time.Millisecond))
		}
		return res, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("start %q: %w", argv[0], err)
	}
	return res, nil
}

// tail returns the last n lines of output.
func tail(output []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
