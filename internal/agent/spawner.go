package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
)

var workerName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// LocalSpawner spawns workers by writing {Dir}/{name}.md role briefs and
// registering the handle.
type LocalSpawner struct {
	// Dir receives one brief per worker.
	Dir string
	// RolesDir optionally overrides role instructions ({RolesDir}/{role}.md).
	RolesDir string
	// Registry, when set, records every spawned worker.
	Registry Registry
	// Now defaults to time.Now.
	Now func() time.Time
}

// Initialize creates the brief directory.
func (s *LocalSpawner) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create worker directory %s: %w", s.Dir, err)
	}
	return nil
}

// Spawn writes the worker's brief and registers it. The brief is always
// overwritten, so re-running a cycle refreshes its workers.
func (s *LocalSpawner) Spawn(ctx context.Context, d Descriptor) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if !workerName.MatchString(d.Name) {
		return Handle{}, fmt.Errorf("invalid worker name %q", d.Name)
	}
	instructions, err := ResolveRoleInstructions(d.Role, s.RolesDir)
	if err != nil {
		return Handle{}, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	h := Handle{
		ID:        uuid.NewString(),
		Name:      d.Name,
		Role:      d.Role,
		Template:  d.Template,
		BriefPath: filepath.Join(s.Dir, d.Name+".md"),
		SpawnedAt: now().UTC(),
	}

	brief, err := RenderBrief(h, d, instructions)
	if err != nil {
		return Handle{}, err
	}
	if err := state.WriteAtomic(h.BriefPath, []byte(brief)); err != nil {
		return Handle{}, fmt.Errorf("write brief for %s: %w", d.Name, err)
	}
	if s.Registry != nil {
		if err := s.Registry.Register(h); err != nil {
			return h, fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return h, nil
}
