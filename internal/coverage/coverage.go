// Package coverage reads and writes istanbul-style json-summary files,
// converts Go cover profiles into that shape, and evaluates coverage gates.
package coverage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/tools/cover"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// SummaryPath is the conventional summary location inside a workspace.
const SummaryPath = "coverage/coverage-summary.json"

type metric struct {
	Total   int     `json:"total"`
	Covered int     `json:"covered"`
	Skipped int     `json:"skipped"`
	Pct     float64 `json:"pct"`
}

// summaryFile mirrors the parts of the json-summary schema we use. Pct is
// decoded loosely because istanbul writes the string "Unknown" when a metric
// has no total.
type summaryFile struct {
	Total map[string]json.RawMessage `json:"total"`
}

// ReadSummary returns the totals recorded in <workspace>/coverage/coverage-summary.json.
// A missing or malformed file returns zero coverage and a non-nil error;
// callers that treat unreadable coverage as zero can ignore the error.
// Individual metrics that are absent or non-numeric read as 0.
func ReadSummary(workspace string) (types.Coverage, error) {
	path := filepath.Join(workspace, SummaryPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Coverage{}, fmt.Errorf("read coverage summary: %w", err)
	}
	var sum summaryFile
	if err := json.Unmarshal(data, &sum); err != nil {
		return types.Coverage{}, &state.ParseError{Path: path, Err: err}
	}
	return types.Coverage{
		Lines:      pct(sum.Total["lines"]),
		Functions:  pct(sum.Total["functions"]),
		Branches:   pct(sum.Total["branches"]),
		Statements: pct(sum.Total["statements"]),
	}, nil
}

func pct(raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}
	var m struct {
		Pct any `json:"pct"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0
	}
	if f, ok := m.Pct.(float64); ok {
		return f
	}
	return 0
}

// Totals carries raw counts per metric for WriteSummary.
type Totals struct {
	Lines, Functions, Branches, Statements Count
}

// Count is covered out of total.
type Count struct {
	Covered int
	Total   int
}

// Pct returns the percentage rounded to two decimals; an empty metric is 100%.
func (c Count) Pct() float64 {
	if c.Total == 0 {
		return 100
	}
	return math.Round(float64(c.Covered)/float64(c.Total)*10000) / 100
}

// Coverage converts counts to percentages.
func (t Totals) Coverage() types.Coverage {
	return types.Coverage{
		Lines:      t.Lines.Pct(),
		Functions:  t.Functions.Pct(),
		Branches:   t.Branches.Pct(),
		Statements: t.Statements.Pct(),
	}
}

// WriteSummary writes t to <workspace>/coverage/coverage-summary.json in the
// json-summary layout ReadSummary understands.
func WriteSummary(workspace string, t Totals) error {
	toMetric := func(c Count) metric {
		return metric{Total: c.Total, Covered: c.Covered, Pct: c.Pct()}
	}
	doc := map[string]map[string]metric{
		"total": {
			"lines":      toMetric(t.Lines),
			"functions":  toMetric(t.Functions),
			"branches":   toMetric(t.Branches),
			"statements": toMetric(t.Statements),
		},
	}
	return state.SaveJSON(filepath.Join(workspace, SummaryPath), doc)
}

// Gate reports whether every metric in c meets its minimum in t. The zero
// threshold always passes.
func Gate(c types.Coverage, t types.Threshold) bool {
	return c.Lines >= t.Lines &&
		c.Functions >= t.Functions &&
		c.Branches >= t.Branches &&
		c.Statements >= t.Statements
}

// FromGoProfile converts a `go test -coverprofile` file into totals.
// Statements come from block statement counts and lines from the source
// lines the blocks span. Go records neither function nor branch coverage,
// so both mirror the statement counts.
func FromGoProfile(path string) (Totals, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return Totals{}, fmt.Errorf("parse cover profile %s: %w", path, err)
	}

	type lineKey struct {
		file string
		line int
	}
	type blockKey struct {
		file                                 string
		startLine, startCol, endLine, endCol int
	}
	lines := make(map[lineKey]bool)
	blocks := make(map[blockKey]cover.ProfileBlock)

	for _, p := range profiles {
		for _, b := range p.Blocks {
			k := blockKey{p.FileName, b.StartLine, b.StartCol, b.EndLine, b.EndCol}
			if prev, ok := blocks[k]; ok && prev.Count > 0 {
				b.Count = prev.Count
			}
			blocks[k] = b
		}
	}

	var stmts Count
	for k, b := range blocks {
		stmts.Total += b.NumStmt
		if b.Count > 0 {
			stmts.Covered += b.NumStmt
		}
		if b.NumStmt == 0 {
			continue
		}
		for l := b.StartLine; l <= b.EndLine; l++ {
			lk := lineKey{k.file, l}
			lines[lk] = lines[lk] || b.Count > 0
		}
	}

	var ln Count
	for _, covered := range lines {
		ln.Total++
		if covered {
			ln.Covered++
		}
	}

	return Totals{Lines: ln, Functions: stmts, Branches: stmts, Statements: stmts}, nil
}
