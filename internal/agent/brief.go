package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// hardcodedRoleContent maps known roles to their default instructions.
// These are used when no override exists under the roles directory.
var hardcodedRoleContent = map[string]string{
	RoleQA: `# QA Responsibilities

- Write the RED test for the interface before any implementation exists.
- Run only the cycle's test file and confirm it fails.
- Keep tests behavioural: assert on the public contract, not internals.
- Refactor tests only while they stay green.`,

	RoleDev: `# Dev Responsibilities

- Write the smallest implementation that makes the RED test pass (GREEN).
- Re-run the cycle's test file with coverage and meet the coverage threshold.
- Refactor the implementation without changing behaviour; tests must stay green.`,
}

// ResolveRoleInstructions returns the instructions for role.
//
// Resolution order:
//  1. {rolesDir}/{role}.md when rolesDir is set and the file exists.
//  2. hardcodedRoleContent.
//
// Returns an error for roles with neither an override nor a default.
func ResolveRoleInstructions(role, rolesDir string) (string, error) {
	if rolesDir != "" {
		path := filepath.Join(rolesDir, role+".md")
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read role file %s: %w", path, err)
		}
	}
	if content, ok := hardcodedRoleContent[role]; ok {
		return content, nil
	}
	return "", fmt.Errorf("unknown role %q: no instructions found", role)
}

// RenderBrief builds the markdown role brief for a worker.
func RenderBrief(h Handle, d Descriptor, instructions string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", h.Name))
	sb.WriteString(fmt.Sprintf("**Worker ID**: %s\n", h.ID))
	sb.WriteString(fmt.Sprintf("**Role**: %s\n", d.Role))
	if d.Template != "" {
		sb.WriteString(fmt.Sprintf("**Template**: %s\n", d.Template))
	}
	sb.WriteString(fmt.Sprintf("**Purpose**: %s\n", d.Purpose))
	if len(d.Tools) > 0 {
		sb.WriteString(fmt.Sprintf("**Tools**: %s\n", strings.Join(d.Tools, ", ")))
	}
	if len(d.Capabilities) > 0 {
		sb.WriteString(fmt.Sprintf("**Capabilities**: %s\n", strings.Join(d.Capabilities, ", ")))
	}
	if len(d.Params) > 0 {
		sb.WriteString("\n**Parameters**:\n")
		keys := make([]string, 0, len(d.Params))
		for k := range d.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, d.Params[k]))
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(instructions)

	if d.Handoff != nil {
		data, err := json.MarshalIndent(d.Handoff, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal handoff: %w", err)
		}
		sb.WriteString("\n\n---\n\n## Handoff\n\n```json\n")
		sb.Write(data)
		sb.WriteString("\n```\n")
	}
	return sb.String(), nil
}
