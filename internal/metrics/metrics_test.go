package metrics_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/metrics"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func fixedClock() func() time.Time {
	ts := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return ts }
}

func newStore(t *testing.T) *metrics.Store {
	t.Helper()
	return metrics.NewStore(filepath.Join(t.TempDir(), "auth")).WithClock(fixedClock())
}

// ---------------------------------------------------------------------------
// Write / LoadLatest
// ---------------------------------------------------------------------------

func TestWrite_TimestampedAndLatest(t *testing.T) {
	s := newStore(t)
	if s.Exists() {
		t.Fatal("store exists before first write")
	}

	path, err := s.Write(types.KindPlan, types.PlanSnapshot{Module: "auth", Status: "→PC"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "1700000000000-plan.json" {
		t.Errorf("timestamped name = %q", filepath.Base(path))
	}
	if !s.Exists() {
		t.Error("store does not exist after write")
	}

	var fromLatest types.PlanSnapshot
	if err := state.LoadJSON(s.LatestPath(types.KindPlan), &fromLatest); err != nil {
		t.Fatalf("latest pointer unreadable: %v", err)
	}
	if fromLatest.Status != "→PC" {
		t.Errorf("latest Status = %q", fromLatest.Status)
	}
}

func TestWrite_SameMillisecondNamesStayUnique(t *testing.T) {
	s := newStore(t)
	a, err := s.Write(types.KindTDD, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Write(types.KindTDD, map[string]int{"n": 2})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two writes produced the same snapshot path %q", a)
	}
	snaps, err := s.Snapshots(types.KindTDD)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || snaps[0] != filepath.Base(b) {
		t.Errorf("Snapshots = %v, want newest %q first", snaps, filepath.Base(b))
	}
}

func TestLoadLatest_PrefersPointer(t *testing.T) {
	s := newStore(t)
	if _, err := s.Write(types.KindTDD, types.TDDSnapshot{Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	var snap types.TDDSnapshot
	path, err := s.LoadLatest(types.KindTDD, &snap)
	if err != nil {
		t.Fatal(err)
	}
	if path != s.LatestPath(types.KindTDD) || snap.Status != "completed" {
		t.Errorf("LoadLatest = %q, %+v", path, snap)
	}
}

func TestLoadLatest_FallsBackToNewestTimestamped(t *testing.T) {
	s := newStore(t)
	for _, status := range []string{"failed", "completed"} {
		if _, err := s.Write(types.KindTDD, types.TDDSnapshot{Status: status}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Remove(s.LatestPath(types.KindTDD)); err != nil {
		t.Fatal(err)
	}

	var snap types.TDDSnapshot
	path, err := s.LoadLatest(types.KindTDD, &snap)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if snap.Status != "completed" {
		t.Errorf("fell back to %q (status %q), want the newest snapshot", path, snap.Status)
	}
}

func TestLoadLatest_NoSnapshot(t *testing.T) {
	s := newStore(t)
	// A plan snapshot must not satisfy a tdd lookup.
	if _, err := s.Write(types.KindPlan, types.PlanSnapshot{}); err != nil {
		t.Fatal(err)
	}
	var snap types.TDDSnapshot
	if _, err := s.LoadLatest(types.KindTDD, &snap); !errors.Is(err, metrics.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestLoadLatest_CorruptPointerWithoutHistory(t *testing.T) {
	s := newStore(t)
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.LatestPath(types.KindTDD), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	var snap types.TDDSnapshot
	_, err := s.LoadLatest(types.KindTDD, &snap)
	if !errors.Is(err, metrics.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
	var pe *state.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected the pointer's *state.ParseError to be kept, got %v", err)
	}
}

func TestLoadLatest_CorruptPointerFallsBackToHistory(t *testing.T) {
	s := newStore(t)
	if _, err := s.Write(types.KindTDD, types.TDDSnapshot{Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.LatestPath(types.KindTDD), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	var snap types.TDDSnapshot
	path, err := s.LoadLatest(types.KindTDD, &snap)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if path == s.LatestPath(types.KindTDD) {
		t.Errorf("LoadLatest returned the corrupt pointer path")
	}
	if snap.Status != "completed" {
		t.Errorf("Status = %q, want completed", snap.Status)
	}
}

func TestLoadLatest_SkipsCorruptTimestamped(t *testing.T) {
	s := newStore(t)
	if _, err := s.Write(types.KindTDD, types.TDDSnapshot{Status: "failed", Module: "auth"}); err != nil {
		t.Fatal(err)
	}
	newest, err := s.Write(types.KindTDD, types.TDDSnapshot{Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newest, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(s.LatestPath(types.KindTDD)); err != nil {
		t.Fatal(err)
	}

	var snap types.TDDSnapshot
	path, err := s.LoadLatest(types.KindTDD, &snap)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if path == newest || snap.Status != "failed" || snap.Module != "auth" {
		t.Errorf("LoadLatest = %q, %+v; want the older readable snapshot", path, snap)
	}
}

func TestWrite_SeparateStoresNeverShareAName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	first := metrics.NewStore(dir).WithClock(fixedClock())
	second := metrics.NewStore(dir).WithClock(fixedClock())

	p1, err := first.Write(types.KindTDD, types.TDDSnapshot{Status: "failed"})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := second.Write(types.KindTDD, types.TDDSnapshot{Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("both stores wrote %s", p1)
	}

	var snap types.TDDSnapshot
	if err := state.LoadJSON(p1, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != "failed" {
		t.Errorf("first snapshot overwritten: status %q", snap.Status)
	}
	snaps, _ := first.Snapshots(types.KindTDD)
	if len(snaps) != 2 {
		t.Errorf("got %d timestamped snapshots, want 2", len(snaps))
	}
}

func TestConcurrentWritesLeaveValidLatest(t *testing.T) {
	s := metrics.NewStore(filepath.Join(t.TempDir(), "auth"))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Write(types.KindTDD, types.TDDSnapshot{Module: "auth", FailedCycles: make([]string, i)}); err != nil {
				t.Errorf("write %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var snap types.TDDSnapshot
	if !metrics.SafeRead(s.LatestPath(types.KindTDD), &snap) {
		t.Fatal("latest pointer is not valid JSON after concurrent writes")
	}
	snaps, _ := s.Snapshots(types.KindTDD)
	if len(snaps) != 10 {
		t.Errorf("got %d timestamped snapshots, want 10", len(snaps))
	}
}

// ---------------------------------------------------------------------------
// SafeRead
// ---------------------------------------------------------------------------

func TestSafeRead(t *testing.T) {
	dir := t.TempDir()
	var v map[string]any
	if metrics.SafeRead(filepath.Join(dir, "missing.json"), &v) {
		t.Error("SafeRead returned true for a missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if metrics.SafeRead(bad, &v) {
		t.Error("SafeRead returned true for a corrupt file")
	}
}

// ---------------------------------------------------------------------------
// PrintRunSummary
// ---------------------------------------------------------------------------

func TestPrintRunSummary_NoCycles(t *testing.T) {
	var buf bytes.Buffer
	// Must not panic when there are no cycles (zero-division guard).
	metrics.PrintRunSummary(&buf, "auth", nil, nil, 0)
	if !strings.Contains(buf.String(), "Failed Cycles:") || !strings.Contains(buf.String(), "None") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

func TestPrintRunSummary_WithCycles(t *testing.T) {
	var buf bytes.Buffer
	d := &types.TDDDetails{TotalCycles: 3, Batches: make([]types.Batch, 2)}
	metrics.PrintRunSummary(&buf, "auth", d, []string{"CYCLE_2"}, 3661*time.Second)

	out := buf.String()
	for _, want := range []string{"TDD SUMMARY: auth", "Passed Cycles:         2", "CYCLE_2", "1h 1m 1s", "1220s per cycle"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
