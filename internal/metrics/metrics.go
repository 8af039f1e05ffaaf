// Package metrics persists per-module run snapshots and the review artifacts
// derived from them.
//
// Each snapshot is written twice: once under an immutable timestamped name
// (<unixMillis>-<kind>.json) and then over the latest-<kind>.json pointer.
// Both writes are atomic renames, and the timestamped copy always lands
// first, so a reader never sees a partial latest file.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/events"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
)

// ErrNoSnapshot is returned by LoadLatest when no snapshot of the kind exists.
var ErrNoSnapshot = errors.New("no snapshot recorded")

// Review artifact names.
const (
	ReviewJSON     = "review.json"
	ReviewMarkdown = "review.md"
)

// Store is the metrics directory of one module. It is safe for concurrent use.
type Store struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewStore returns a Store rooted at dir. Nothing is created until the first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// WithClock sets the clock used to name timestamped snapshots.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir returns the module's metrics directory.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether anything has been recorded for the module.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// LatestPath returns the latest pointer path for kind.
func (s *Store) LatestPath(kind string) string {
	return filepath.Join(s.dir, "latest-"+kind+".json")
}

// EventsPath returns the module's event log path.
func (s *Store) EventsPath() string {
	return filepath.Join(s.dir, events.FileName)
}

// ReviewPaths returns the canonical and rendered review artifact paths.
func (s *Store) ReviewPaths() (jsonPath, mdPath string) {
	return filepath.Join(s.dir, ReviewJSON), filepath.Join(s.dir, ReviewMarkdown)
}

// Write records payload as a new snapshot of kind and returns the
// timestamped path. Snapshot names are strictly increasing within a Store,
// and a name already taken on disk (by another Store or process writing in
// the same millisecond) is never reused: the stamp is bumped until an
// exclusive create succeeds.
func (s *Store) Write(kind string, payload any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	if stamp <= s.last {
		stamp = s.last + 1
	}
	path, stamp, err := s.reserve(kind, stamp)
	if err != nil {
		return "", fmt.Errorf("write %s snapshot: %w", kind, err)
	}
	s.last = stamp

	if err := state.SaveJSON(path, payload); err != nil {
		return "", fmt.Errorf("write %s snapshot: %w", kind, err)
	}
	if err := state.SaveJSON(s.LatestPath(kind), payload); err != nil {
		return path, fmt.Errorf("update latest %s snapshot: %w", kind, err)
	}
	return path, nil
}

// reserve claims the first free <stamp>-<kind>.json at or after stamp by
// creating it exclusively. The empty placeholder is replaced by the
// snapshot's atomic write.
func (s *Store) reserve(kind string, stamp int64) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, err
	}
	for {
		path := filepath.Join(s.dir, fmt.Sprintf("%d-%s.json", stamp, kind))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, stamp, f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, err
		}
		stamp++
	}
}

// LoadLatest decodes the newest readable snapshot of kind into v and
// returns the path it came from. The latest pointer is preferred; when it is
// missing or corrupt, timestamped snapshots are tried newest first and
// unreadable ones are skipped. Callers can compare the returned path with
// LatestPath to tell that a fallback happened.
func (s *Store) LoadLatest(kind string, v any) (string, error) {
	latest := s.LatestPath(kind)
	pointerErr := state.LoadJSON(latest, v)
	if pointerErr == nil {
		return latest, nil
	}
	var pe *state.ParseError
	if !errors.Is(pointerErr, state.ErrNotFound) && !errors.As(pointerErr, &pe) {
		return latest, pointerErr
	}

	snaps, err := s.Snapshots(kind)
	if err != nil {
		return "", err
	}
	for _, name := range snaps {
		path := filepath.Join(s.dir, name)
		resetValue(v)
		if err := state.LoadJSON(path, v); err == nil {
			return path, nil
		}
	}
	resetValue(v)
	noSnap := fmt.Errorf("%w: %s for %s", ErrNoSnapshot, kind, s.dir)
	if pe != nil {
		return "", errors.Join(noSnap, pointerErr)
	}
	return "", noSnap
}

// resetValue zeroes the value v points to, discarding fields a failed
// decode may have filled.
func resetValue(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().SetZero()
	}
}

// Snapshots lists the timestamped snapshot names of kind, newest first.
func (s *Store) Snapshots(kind string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	suffix := "-" + kind + ".json"
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) || strings.HasPrefix(name, "latest-") {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// SafeRead decodes the JSON file at path into v, reporting false when the
// file is missing or corrupt instead of returning an error.
func SafeRead(path string, v any) bool {
	return state.LoadJSON(path, v) == nil
}
