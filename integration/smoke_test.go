// Package integration contains the end-to-end smoke test for the sigma
// binary. TestMain builds sigma once into a temp dir; each test then runs
// the real binary as a subprocess inside a fresh project directory.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// sigmaBinaryPath holds the path to the sigma binary built during TestMain.
var sigmaBinaryPath string

func TestMain(m *testing.M) {
	// Delegate to a helper so that deferred cleanup runs before os.Exit.
	os.Exit(buildAndRun(m))
}

// buildAndRun builds the sigma binary, stores its path in sigmaBinaryPath,
// runs the test suite, and returns the exit code.
func buildAndRun(m *testing.M) int {
	binDir, err := os.MkdirTemp("", "sigma-smoke-bin-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "TestMain: create bin dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(binDir)

	bin := filepath.Join(binDir, "sigma")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	// go test runs in the package directory (integration/); the module root
	// is its parent.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "TestMain: getwd: %v\n", err)
		return 1
	}
	build := exec.Command("go", "build", "-o", bin, ".")
	build.Dir = filepath.Dir(cwd)
	if out, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "TestMain: build sigma binary: %v\n%s\n", err, out)
		return 1
	}

	sigmaBinaryPath = bin
	return m.Run()
}

// ---------------------------------------------------------------------------
// Smoke test
// ---------------------------------------------------------------------------

// TestSmokeEndToEnd walks one module through the whole workflow:
//   - init scaffolds sigma.yaml and a design, which is replaced by a
//     two-interface design;
//   - plan drafts two cycles;
//   - tdd runs both cycles with real `go test` invocations;
//   - review and status report the completed run.
func TestSmokeEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	projectDir := t.TempDir()
	writeTestFile(t, projectDir, "go.mod", "module smoketest\n\ngo 1.21\n")

	runSigma(t, projectDir, 0, "init", "calc")
	writeTestFile(t, projectDir, filepath.Join("memory-bank", "modules", "calc", "design.md"), smokeDesign)

	planOut := runSigma(t, projectDir, 0, "plan", "calc", "--json")
	var planRes struct {
		Success  bool   `json:"success"`
		PlanPath string `json:"planPath"`
	}
	decodeJSON(t, planOut, &planRes)
	if !planRes.Success {
		t.Fatalf("plan not successful: %s", planOut)
	}
	assertPlanCycles(t, filepath.Join(projectDir, "memory-bank", "modules", "calc", "tdd_plan.md"), 2)

	tddOut := runSigma(t, projectDir, 0, "tdd", "calc", "--json", "--runner=go", "--parallel=2", "--cov-statements=50")
	var tddRes struct {
		Success      bool     `json:"success"`
		FailedCycles []string `json:"failedCycles"`
		Details      struct {
			TotalCycles int `json:"totalCycles"`
		} `json:"details"`
	}
	decodeJSON(t, tddOut, &tddRes)
	if !tddRes.Success || len(tddRes.FailedCycles) != 0 {
		t.Fatalf("tdd did not pass: %s", tddOut)
	}
	if tddRes.Details.TotalCycles != 2 {
		t.Errorf("TotalCycles = %d, want 2", tddRes.Details.TotalCycles)
	}

	runSigma(t, projectDir, 0, "review", "calc")
	metricsDir := filepath.Join(projectDir, ".claude-collective", "metrics", "sigma", "calc")
	for _, name := range []string{"review.json", "review.md", "latest-plan.json", "latest-tdd.json"} {
		if _, err := os.Stat(filepath.Join(metricsDir, name)); err != nil {
			t.Errorf("metrics artifact %s missing: %v", name, err)
		}
	}

	assertRegistry(t, filepath.Join(metricsDir, "agents.yaml"), 2)

	statusOut := runSigma(t, projectDir, 0, "status", "calc", "--json")
	var st struct {
		Installed     bool     `json:"installed"`
		TDDStatus     string   `json:"tddStatus"`
		FailedCycles  []string `json:"failedCycles"`
		ReviewSummary *struct {
			PassedCycles int `json:"passedCycles"`
		} `json:"reviewSummary"`
	}
	decodeJSON(t, statusOut, &st)
	if !st.Installed || st.TDDStatus != "completed" {
		t.Errorf("unexpected status: %s", statusOut)
	}
	if st.ReviewSummary == nil || st.ReviewSummary.PassedCycles != 2 {
		t.Errorf("review summary not reflected in status: %s", statusOut)
	}
}

// TestSmokeTimeoutFailsCycles confirms a per-invocation timeout too short
// for `go test` fails every cycle and the process exits with status 2.
func TestSmokeTimeoutFailsCycles(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	projectDir := t.TempDir()
	writeTestFile(t, projectDir, "go.mod", "module smoketest\n\ngo 1.21\n")
	runSigma(t, projectDir, 0, "init", "calc")
	runSigma(t, projectDir, 0, "plan", "calc")

	out := runSigma(t, projectDir, 2, "tdd", "calc", "--runner=go", "--timeout=1ms")
	if !strings.Contains(out, "CYCLE_1") {
		t.Errorf("failure output should name the failed cycle:\n%s", out)
	}
}

func TestSmokeStatusBeforeAnything(t *testing.T) {
	projectDir := t.TempDir()
	out := runSigma(t, projectDir, 0, "status", "ghost", "--json")
	if strings.TrimSpace(out) != "{\n  \"module\": \"ghost\",\n  \"installed\": false\n}" {
		t.Errorf("unexpected status output:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

const smokeDesign = "# calc design\n\n" +
	"## Interface\n\n" +
	"```go\n" +
	"func Add(a, b int) int\n" +
	"func Sub(a, b int) int\n" +
	"```\n"

// registrySchema is used only for asserting the worker registry contents.
type registrySchema struct {
	Agents []struct {
		Name string `yaml:"name"`
		Role string `yaml:"role"`
	} `yaml:"agents"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// runSigma runs the sigma binary in dir and fails unless it exits with
// wantCode. It returns stdout.
func runSigma(t *testing.T, dir string, wantCode int, args ...string) string {
	t.Helper()
	cmd := exec.Command(sigmaBinaryPath, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	code := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("sigma %v: %v", args, err)
		}
		code = exitErr.ExitCode()
	}
	if code != wantCode {
		t.Fatalf("sigma %v exited %d, want %d\nstdout:\n%s\nstderr:\n%s", args, code, wantCode, out, stderr.String())
	}
	t.Logf("sigma %v stderr:\n%s", args, stderr.String())
	return string(out) + stderr.String()
}

// writeTestFile writes content to rel inside dir, creating parent
// directories and failing the test on error.
func writeTestFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON object in output:\n%s", out)
	}
	if err := json.NewDecoder(strings.NewReader(out[start:])).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v\n%s", err, out)
	}
}

// assertPlanCycles decodes the ```json record of the plan document and
// checks the number of cycles.
func assertPlanCycles(t *testing.T, path string, want int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	body := string(data)
	if i := strings.Index(body, "```json\n"); i >= 0 {
		body = body[i+len("```json\n"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
	}
	var p struct {
		Cycles []struct {
			ID string `json:"id"`
		} `json:"cycles"`
	}
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("parse plan record: %v\n%s", err, body)
	}
	if len(p.Cycles) != want {
		t.Errorf("plan has %d cycles, want %d", len(p.Cycles), want)
	}
}

// assertRegistry checks that agents.yaml lists one testing and one
// implementation worker per cycle.
func assertRegistry(t *testing.T, path string, cycles int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	var reg registrySchema
	if err := yaml.Unmarshal(data, &reg); err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	roles := map[string]int{}
	for _, a := range reg.Agents {
		roles[a.Role]++
	}
	if roles["testing"] != cycles || roles["implementation"] != cycles {
		t.Errorf("registry roles = %v, want %d of each", roles, cycles)
	}
}
