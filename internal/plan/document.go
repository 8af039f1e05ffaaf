package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// ErrNoCanonicalRecord is returned by Parse when the document has no
// ```json block.
var ErrNoCanonicalRecord = errors.New("plan document has no canonical json record")

// ParseError is returned when the canonical record exists but cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse plan record: %v", e.Err)
	}
	return fmt.Sprintf("parse plan record in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Render serializes p as a markdown document: a readable header and cycle
// table, followed by the canonical record embedded verbatim in a ```json
// block.
func Render(p types.Plan) (string, error) {
	record, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# TDD Plan for %s\n\n", p.Module)
	fmt.Fprintf(&b, "Generated: %s\n\n", p.GeneratedAt)
	b.WriteString("## Cycles\n\n")
	fmt.Fprintf(&b, "Cycles: %d\n\n", len(p.Cycles))
	if len(p.Cycles) > 0 {
		b.WriteString("| ID | Interface |\n|----|-----------|\n")
		for _, c := range p.Cycles {
			fmt.Fprintf(&b, "| %s | `%s` |\n", c.ID, strings.ReplaceAll(c.Interface, "|", `\|`))
		}
		b.WriteString("\n")
	}
	b.WriteString("```json\n")
	b.Write(record)
	b.WriteString("\n```\n")
	return b.String(), nil
}

// Parse decodes the canonical record from a plan document. The first
// ```json block is authoritative. Parse never substitutes an empty plan:
// callers that tolerate unreadable plans decide that for themselves.
func Parse(doc string) (*types.Plan, error) {
	body, ok := canonicalBlock(doc)
	if !ok {
		return nil, ErrNoCanonicalRecord
	}
	var p types.Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &p, nil
}

// ParseFile reads and parses the plan document at path.
func ParseFile(path string) (*types.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	p, err := Parse(string(data))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// canonicalBlock returns the body of the first ```json block. Both fences
// must stand on their own line, so backticks inside the record's strings
// never end the block early.
func canonicalBlock(doc string) (string, bool) {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if start < 0 {
			if strings.TrimSpace(line) == "```json" {
				start = i + 1
			}
			continue
		}
		if strings.TrimSpace(line) == "```" {
			return strings.TrimSpace(strings.Join(lines[start:i], "\n")), true
		}
	}
	return "", false
}
