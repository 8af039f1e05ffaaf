package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/coverage"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/runner"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/statusmap"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/templates"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// runCycle drives one cycle through PLANNED → RED_RUN → GREEN_RUN →
// REFACTOR_RUN → PASSED|FAILED. Worker spawns run alongside the phases and
// are joined before the record is returned.
func (e *Engine) runCycle(ctx context.Context, req Request, c types.Cycle) types.CycleRun {
	run := types.CycleRun{ID: c.ID, Interface: c.Interface, State: types.CycleStatePlanned}
	log := e.logger.With(zap.String("module", req.Module), zap.String("cycle", c.ID))

	var qa, dev types.WorkerRecord
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		qa = e.spawn(ctx, qaDescriptor(req, c, e.kit.Name, e.now()))
	}()
	go func() {
		defer wg.Done()
		dev = e.spawn(ctx, devDescriptor(req, c, e.kit.Name, e.now()))
	}()

	d := templates.NewData(req.Module, c.ID, c.Interface)
	ws, err := workspacePath(e.cfg.WorkDir, req.Module, c.ID)
	if err == nil {
		run.RGR.Workspace = ws
		err = e.prepareWorkspace(ws, d)
	}
	if err != nil {
		log.Error("workspace setup failed", zap.String("workspace", ws), zap.Error(err))
		broken := exceptionRun(0)
		run.RGR.Red, run.RGR.Green, run.RGR.Refactor = broken, broken, broken
	} else {
		run.State = types.CycleStateRedRun
		run.RGR.Red = e.runPhase(ctx, log, req.Module, c.ID, ws, d, types.PhaseRed)
		run.State = types.CycleStateGreenRun
		run.RGR.Green = e.runPhase(ctx, log, req.Module, c.ID, ws, d, types.PhaseGreen)
		run.State = types.CycleStateRefactorRun
		run.RGR.Refactor = e.runPhase(ctx, log, req.Module, c.ID, ws, d, types.PhaseRefactor)
	}

	wg.Wait()
	run.QA, run.Dev = qa, dev

	failed := run.Failed()
	if failed {
		run.State = types.CycleStateFailed
	} else {
		run.State = types.CycleStatePassed
	}
	e.tel.ObserveCycle(failed)
	log.Info("cycle finished", zap.String("status", string(run.State)))
	return run
}

// workspacePath returns <workDir>/<module>/<id>, refusing ids that would
// resolve anywhere but a direct child of the module directory.
func workspacePath(workDir, module, id string) (string, error) {
	moduleDir := filepath.Join(workDir, module)
	ws := filepath.Join(moduleDir, id)
	if id == "" || id == "." || id == ".." || filepath.Dir(ws) != moduleDir {
		return "", fmt.Errorf("cycle id %q is not a single path segment", id)
	}
	return ws, nil
}

// prepareWorkspace recreates ws from scratch and writes the kit's setup files.
func (e *Engine) prepareWorkspace(ws string, d templates.Data) error {
	if err := os.RemoveAll(ws); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	for _, sub := range []string{"src", "tests", "coverage"} {
		if err := os.MkdirAll(filepath.Join(ws, sub), 0o755); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
	}
	files, err := e.kit.Setup(d)
	if err != nil {
		return err
	}
	return writeFiles(ws, files)
}

// runPhase writes the phase's files, invokes the runner and classifies the
// outcome. GREEN and REFACTOR also read coverage and evaluate the gate.
func (e *Engine) runPhase(ctx context.Context, log *zap.Logger, module, cycleID, ws string, d templates.Data, phase types.Phase) types.PhaseRun {
	withCoverage := phase != types.PhaseRed
	testFile := e.kit.TestPath(d)

	var (
		res runner.Result
		err error
	)
	files, err := e.kit.Phase(phase, d)
	if err == nil {
		err = writeFiles(ws, files)
	}
	if err == nil && withCoverage {
		// A summary left by the previous phase must not be mistaken for this one.
		if rmErr := os.Remove(filepath.Join(ws, coverage.SummaryPath)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("could not remove stale coverage summary", zap.Error(rmErr))
		}
	}
	if err == nil {
		res, err = e.invoke(ctx, runner.Request{Dir: ws, TestFile: testFile, Coverage: withCoverage})
	}

	pr := classify(phase, res, err)
	if withCoverage {
		cov, covErr := coverage.ReadSummary(ws)
		if covErr != nil {
			log.Warn("coverage unreadable, using zero",
				zap.String("phase", string(phase)), zap.Error(covErr))
			cov = types.Coverage{}
		}
		gate := coverage.Gate(cov, e.cfg.Threshold)
		pr.Coverage = &cov
		pr.CoverageGate = &gate
		if !gate && pr.Failure == types.FailureNone {
			pr.Failure = types.FailureCoverageGate
		}
		e.tel.ObserveGate(phase, gate)
	}

	fields := []zap.Field{
		zap.String("phase", string(phase)),
		zap.String("code", pr.Status),
		zap.Int("exit_code", pr.ExitCode),
		zap.Duration("duration", res.Duration),
	}
	if pr.Failure != types.FailureNone {
		fields = append(fields, zap.String("failure", string(pr.Failure)))
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Warn("phase complete", fields...)
		if res.Output != "" {
			log.Debug("runner output", zap.String("phase", string(phase)), zap.String("output", res.Output))
		}
	} else {
		log.Info("phase complete", fields...)
	}
	e.tel.ObservePhase(phase, pr.Status, res.Duration)
	e.recordEvent(log, cycleID, phase, pr, filepath.Join(ws, testFile))
	return pr
}

// invoke runs the runner under the per-invocation timeout.
func (e *Engine) invoke(ctx context.Context, req runner.Request) (runner.Result, error) {
	if e.cfg.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TestTimeout)
		defer cancel()
	}
	return e.runner.Run(ctx, req)
}

// classify maps a runner outcome to a status code and failure kind. RED
// expects a non-zero exit; GREEN and REFACTOR expect zero.
func classify(phase types.Phase, res runner.Result, err error) types.PhaseRun {
	pr := types.PhaseRun{ExitCode: res.ExitCode, DurationMs: res.Duration.Milliseconds()}
	switch {
	case errors.Is(err, runner.ErrTimeout):
		pr.ExitCode = -1
		pr.Status = string(statusmap.Timeout)
		pr.Failure = types.FailureTimeout
		return pr
	case err != nil:
		return exceptionRun(res.Duration)
	}

	switch phase {
	case types.PhaseRed:
		if res.ExitCode != 0 {
			pr.Status = string(statusmap.RedComplete)
		} else {
			pr.Status = string(statusmap.UnexpectedPass)
			pr.Failure = types.FailureUnexpectedPass
		}
	case types.PhaseGreen, types.PhaseRefactor:
		if res.ExitCode == 0 {
			pr.Status = string(statusmap.GreenComplete)
			if phase == types.PhaseRefactor {
				pr.Status = string(statusmap.RefactorImplComplete)
			}
		} else {
			pr.Status = string(statusmap.UnexpectedFail)
			pr.Failure = types.FailureUnexpectedFail
		}
	}
	return pr
}

// exceptionRun is the record of a phase whose runner never produced an exit
// status. ExitCode -1 keeps RED from reading as an unexpected pass.
func exceptionRun(d time.Duration) types.PhaseRun {
	return types.PhaseRun{
		Status:     string(statusmap.Exception),
		ExitCode:   -1,
		Failure:    types.FailureException,
		DurationMs: d.Milliseconds(),
	}
}

func (e *Engine) recordEvent(log *zap.Logger, cycleID string, phase types.Phase, pr types.PhaseRun, testFile string) {
	if e.events == nil {
		return
	}
	if e.cwd != "" {
		if rel, err := filepath.Rel(e.cwd, testFile); err == nil {
			testFile = rel
		}
	}
	ev := types.Event{
		Cycle:        cycleID,
		Phase:        phase,
		Code:         pr.Status,
		ExitCode:     pr.ExitCode,
		Coverage:     pr.Coverage,
		CoverageGate: pr.CoverageGate,
		Failure:      pr.Failure,
		TestFile:     testFile,
	}
	if err := e.events.Append(ev); err != nil {
		log.Warn("event append failed", zap.String("phase", string(phase)), zap.Error(err))
	}
}

func writeFiles(ws string, files []templates.File) error {
	for _, f := range files {
		dst := filepath.Join(ws, f.Path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
	}
	return nil
}
