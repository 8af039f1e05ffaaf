package plan

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// cycleIDPattern limits cycle ids to one safe path segment; the engine
// names each cycle's workspace directory after its id.
var cycleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate performs a structural sanity check on a parsed plan before the
// engine runs it.
//
// It returns an error when:
//   - module is empty
//   - a cycle id is empty, repeated, or not a single path segment
//   - a cycle's phases are not exactly RED, GREEN, REFACTOR
func Validate(p *types.Plan) error {
	if p.Module == "" {
		return fmt.Errorf("plan: module is required but empty")
	}
	seen := make(map[string]bool, len(p.Cycles))
	for i, c := range p.Cycles {
		if c.ID == "" {
			return fmt.Errorf("plan: cycle %d has an empty id", i+1)
		}
		if !cycleIDPattern.MatchString(c.ID) {
			return fmt.Errorf("plan: cycle %d has invalid id %q: want letters, digits, '.', '_' or '-'", i+1, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("plan: duplicate cycle id %q", c.ID)
		}
		seen[c.ID] = true
		if !slices.Equal(c.Phases, types.AllPhases()) {
			return fmt.Errorf("plan: cycle %q has phases %v, want [RED GREEN REFACTOR]", c.ID, c.Phases)
		}
	}
	return nil
}
