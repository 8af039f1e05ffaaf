// Package events implements a module's append-only event log: one JSON
// object per line, one line per completed phase.
package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// FileName is the log's name inside a module's metrics directory.
const FileName = "events.log"

// Log appends events to a single file. It is safe for concurrent use:
// appends are serialized and each line is written with one write call on an
// O_APPEND descriptor, so lines from sibling cycles never interleave.
type Log struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// Open returns a Log writing to path. The file and its directory are
// created on first append.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// WithClock sets the clock used to stamp events that have no timestamp.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Path returns the file the log appends to.
func (l *Log) Path() string { return l.path }

// Append writes ev as one line. A zero TS is stamped with the current time.
func (l *Log) Append(ev types.Event) error {
	if ev.TS.IsZero() {
		ev.TS = l.now().UTC()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append event: %w", err)
	}
	return f.Close()
}

// Read returns every decodable event in the log at path, in file order.
// A missing file yields no events. Lines that are blank are ignored; lines
// that fail to decode are skipped and counted in malformed.
func Read(path string) (evs []types.Event, malformed int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read event log: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			malformed++
			continue
		}
		evs = append(evs, ev)
	}
	if err := sc.Err(); err != nil {
		return evs, malformed, fmt.Errorf("scan event log: %w", err)
	}
	return evs, malformed, nil
}

// CountPhases tallies events per RGR phase. Events with other phases are ignored.
func CountPhases(evs []types.Event) types.PhaseCounts {
	var c types.PhaseCounts
	for _, ev := range evs {
		switch ev.Phase {
		case types.PhaseRed:
			c.Red++
		case types.PhaseGreen:
			c.Green++
		case types.PhaseRefactor:
			c.Refactor++
		}
	}
	return c
}
