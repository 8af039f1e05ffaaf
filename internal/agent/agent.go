// Package agent provides the worker capability the cycle engine calls for
// each cycle: spawning a named worker from a role descriptor and keeping a
// registry of spawned workers.
//
// The local implementation materializes each worker as a role brief on disk
// (the file an external agent process reads to learn its assignment) and
// records it in a YAML registry.
package agent

import (
	"context"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/bridge"
)

// Worker roles.
const (
	RoleQA  = "testing"
	RoleDev = "implementation"
)

// Descriptor is everything a spawner needs to create one worker.
type Descriptor struct {
	Name         string
	Role         string
	Purpose      string
	Template     string
	Capabilities []string
	Tools        []string
	Params       map[string]string
	Handoff      *bridge.Handoff
}

// Handle identifies a spawned worker.
type Handle struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Role      string    `yaml:"role" json:"role"`
	Template  string    `yaml:"template,omitempty" json:"template,omitempty"`
	BriefPath string    `yaml:"brief_path,omitempty" json:"briefPath,omitempty"`
	SpawnedAt time.Time `yaml:"spawned_at" json:"spawnedAt"`
}

// Spawner creates workers. Spawn must be safe for concurrent use.
type Spawner interface {
	Initialize(ctx context.Context) error
	Spawn(ctx context.Context, d Descriptor) (Handle, error)
}

// Registry records spawned workers. Register must be safe for concurrent use.
type Registry interface {
	Initialize(ctx context.Context) error
	Register(h Handle) error
	List() []Handle
}
