// Package bridge builds the context and handoff envelopes passed between
// collaborating workers. All functions are pure apart from the default
// timestamp in ToHandoff.
package bridge

import "time"

// Session locates a handoff within a run. Nil fields are unknown.
type Session struct {
	SID   *string `json:"sid"`
	Cycle *string `json:"cycle"`
	Phase *string `json:"phase"`
	Round *int    `json:"round"`
}

// Context is the shared view of a module handed to a worker.
type Context struct {
	Module             string  `json:"module"`
	DesignPath         string  `json:"designPath"`
	PlanPath           string  `json:"planPath"`
	InterfaceSignature string  `json:"interfaceSignature"`
	Session            Session `json:"session"`
}

// ContextInput carries the optional session fields for BuildContext.
// Empty strings and nil rounds become nulls.
type ContextInput struct {
	Module             string
	DesignPath         string
	PlanPath           string
	InterfaceSignature string
	SID                string
	Cycle              string
	Phase              string
	Round              *int
}

// BuildContext assembles a Context from in.
func BuildContext(in ContextInput) Context {
	return Context{
		Module:             in.Module,
		DesignPath:         in.DesignPath,
		PlanPath:           in.PlanPath,
		InterfaceSignature: in.InterfaceSignature,
		Session: Session{
			SID:   optional(in.SID),
			Cycle: optional(in.Cycle),
			Phase: optional(in.Phase),
			Round: in.Round,
		},
	}
}

// Task describes the work requested in a handoff.
type Task struct {
	Type       string         `json:"type"`
	Purpose    string         `json:"purpose"`
	Parameters map[string]any `json:"parameters"`
}

// Handoff is the envelope passed from one role to another.
type Handoff struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Task     Task           `json:"task"`
	Context  Context        `json:"context"`
	Metadata map[string]any `json:"metadata"`
}

// HandoffInput holds the raw parts of a handoff. Task may be nil.
type HandoffInput struct {
	From     string
	To       string
	Task     *Task
	Context  Context
	Metadata map[string]any
	Now      time.Time
}

// ToHandoff normalizes in into a Handoff. Missing task fields default to
// type "general", purpose "unspecified" and empty parameters. A timestamp
// already present in Metadata is kept; otherwise Now (or the current time)
// is stamped in RFC3339 UTC.
func ToHandoff(in HandoffInput) Handoff {
	task := Task{Type: "general", Purpose: "unspecified", Parameters: map[string]any{}}
	if in.Task != nil {
		if in.Task.Type != "" {
			task.Type = in.Task.Type
		}
		if in.Task.Purpose != "" {
			task.Purpose = in.Task.Purpose
		}
		if in.Task.Parameters != nil {
			task.Parameters = in.Task.Parameters
		}
	}

	meta := make(map[string]any, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		meta[k] = v
	}
	if ts, ok := meta["timestamp"]; !ok || ts == "" || ts == nil {
		now := in.Now
		if now.IsZero() {
			now = time.Now()
		}
		meta["timestamp"] = now.UTC().Format(time.RFC3339)
	}

	return Handoff{
		From:     in.From,
		To:       in.To,
		Task:     task,
		Context:  in.Context,
		Metadata: meta,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
