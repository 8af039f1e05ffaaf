package plan

import (
	"regexp"
	"strings"
)

// Placeholder is the signature used when a design document has no
// recognizable declarations, so every module yields at least one cycle.
const Placeholder = "function placeholder() {}"

// declaration matches function-style declaration lines: a named JS/TS
// function anywhere on the line, or a Go func / Python def at line start.
var declaration = regexp.MustCompile(
	`\bfunction(?:\s*\*\s*|\s+)[A-Za-z0-9_$]+\s*\(` +
		`|^\s*func\s+(?:\([^)]*\)\s*)?[A-Za-z0-9_]+\s*[\[(]` +
		`|^\s*(?:async\s+)?def\s+[A-Za-z0-9_]+\s*\(`,
)

// ExtractSignatures scans every fenced code excerpt in text and returns the
// trimmed declaration lines in document order. When nothing matches it
// returns a single Placeholder.
func ExtractSignatures(text string) []string {
	var out []string
	for _, block := range fencedBlocks(text) {
		for _, line := range block {
			if declaration.MatchString(line) {
				out = append(out, strings.TrimSpace(line))
			}
		}
	}
	if len(out) == 0 {
		out = append(out, Placeholder)
	}
	return out
}

// fencedBlocks returns the body lines of each ``` fenced excerpt. An
// unterminated fence is ignored.
func fencedBlocks(text string) [][]string {
	var (
		blocks  [][]string
		current []string
		inside  bool
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if strings.HasPrefix(trimmed, "```") {
			if inside {
				blocks = append(blocks, current)
				current = nil
				inside = false
			} else {
				inside = true
			}
			continue
		}
		if inside {
			current = append(current, strings.TrimSuffix(line, "\r"))
		}
	}
	return blocks
}
