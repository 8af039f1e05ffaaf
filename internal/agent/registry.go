package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
)

// registryFile mirrors the YAML structure of agents.yaml.
type registryFile struct {
	Agents []Handle `yaml:"agents"`
}

// FileRegistry keeps the worker registry in a YAML file. Every Register
// rewrites the file atomically.
type FileRegistry struct {
	Path string

	mu     sync.Mutex
	agents []Handle
}

// Initialize loads existing entries. A missing file is an empty registry.
func (r *FileRegistry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var f registryFile
	if err := state.LoadYAML(r.Path, &f); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			r.agents = nil
			return nil
		}
		return fmt.Errorf("load worker registry: %w", err)
	}
	r.agents = f.Agents
	return nil
}

// Register appends h, replacing any entry with the same name.
func (r *FileRegistry) Register(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := false
	for i := range r.agents {
		if r.agents[i].Name == h.Name {
			r.agents[i] = h
			replaced = true
			break
		}
	}
	if !replaced {
		r.agents = append(r.agents, h)
	}
	return state.SaveYAML(r.Path, registryFile{Agents: r.agents})
}

// List returns a copy of the registered workers in registration order.
func (r *FileRegistry) List() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Handle(nil), r.agents...)
}
