// Package templates holds the embedded template files used by the engine.
// All templates are compiled into the binary at build time via //go:embed.
//
// Two subdirectories serve different purposes:
//
//   - runtime/: per-runner RGR scaffolds (one Kit per runner kind) rendered
//     into each cycle workspace. These are never copied to the user's project.
//
//   - init/: files stamped into a project by `sigma init`.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
	"unicode"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// Runtime holds the per-runner cycle scaffolds.
//
//go:embed runtime
var Runtime embed.FS

// Init holds files written to the target project by `sigma init`.
//
//go:embed init
var Init embed.FS

// Data is the template context for every scaffold.
type Data struct {
	Module    string
	CycleID   string
	Interface string
	// Ident is an exported Go-style identifier derived from CycleID (or
	// Module for init templates), e.g. CYCLE_1 → Cycle1.
	Ident string
}

// NewData fills Ident from cycleID.
func NewData(module, cycleID, iface string) Data {
	return Data{Module: module, CycleID: cycleID, Interface: iface, Ident: Ident(cycleID)}
}

// File is one rendered file, Path relative to the cycle workspace.
type File struct {
	Path    string
	Content []byte
}

// Kit describes how one test runner lays out a cycle workspace.
type Kit struct {
	Name string

	setup    map[string]string // workspace path → embedded source
	testPath string            // template for the test file path
	implPath string            // template for the implementation path
	phases   map[types.Phase][]phaseFile
}

type phaseFile struct {
	impl bool // true: render to implPath, false: render to testPath
	src  string
}

var kits = map[string]*Kit{
	"jest": {
		Name:     "jest",
		setup:    map[string]string{"jest.cycle.config.js": "runtime/jest/jest.cycle.config.js"},
		testPath: "tests/{{.CycleID}}.test.js",
		implPath: "src/{{.CycleID}}.js",
		phases: map[types.Phase][]phaseFile{
			types.PhaseRed: {{src: "runtime/jest/red.test.js.tmpl"}},
			types.PhaseGreen: {
				{impl: true, src: "runtime/jest/green.impl.js.tmpl"},
				{src: "runtime/jest/green.test.js.tmpl"},
			},
			types.PhaseRefactor: {{impl: true, src: "runtime/jest/refactor.impl.js.tmpl"}},
		},
	},
	"go": {
		Name:     "go",
		setup:    map[string]string{"go.mod": "runtime/go/go.mod.tmpl"},
		testPath: "tests/{{.CycleID}}_test.go",
		implPath: "src/impl.go",
		phases: map[types.Phase][]phaseFile{
			types.PhaseRed: {{src: "runtime/go/red_test.go.tmpl"}},
			types.PhaseGreen: {
				{impl: true, src: "runtime/go/green_impl.go.tmpl"},
				{src: "runtime/go/green_test.go.tmpl"},
			},
			types.PhaseRefactor: {{impl: true, src: "runtime/go/refactor_impl.go.tmpl"}},
		},
	},
}

// Lookup returns the kit for a runner kind ("jest" or "go").
func Lookup(kind string) (*Kit, error) {
	k, ok := kits[kind]
	if !ok {
		return nil, fmt.Errorf("no scaffold kit for runner %q", kind)
	}
	return k, nil
}

// Setup renders the files every workspace needs before RED runs.
func (k *Kit) Setup(d Data) ([]File, error) {
	var out []File
	for dst, src := range k.setup {
		content, err := render(Runtime, src, d)
		if err != nil {
			return nil, err
		}
		out = append(out, File{Path: dst, Content: content})
	}
	return out, nil
}

// TestPath returns the cycle's test file path relative to the workspace.
func (k *Kit) TestPath(d Data) string {
	return expand(k.testPath, d)
}

// ImplPath returns the cycle's implementation path relative to the workspace.
func (k *Kit) ImplPath(d Data) string {
	return expand(k.implPath, d)
}

// Phase renders the files written before the given phase runs: RED writes
// the failing test, GREEN writes the minimal implementation and its test,
// REFACTOR rewrites only the implementation.
func (k *Kit) Phase(phase types.Phase, d Data) ([]File, error) {
	specs, ok := k.phases[phase]
	if !ok {
		return nil, fmt.Errorf("kit %s: unknown phase %q", k.Name, phase)
	}
	out := make([]File, 0, len(specs))
	for _, s := range specs {
		content, err := render(Runtime, s.src, d)
		if err != nil {
			return nil, err
		}
		dst := k.TestPath(d)
		if s.impl {
			dst = k.ImplPath(d)
		}
		out = append(out, File{Path: dst, Content: content})
	}
	return out, nil
}

// InitFiles renders the files `sigma init` writes for a module, keyed by
// their name under init/ with any .tmpl suffix removed.
func InitFiles(module string) (map[string][]byte, error) {
	d := Data{Module: module, Ident: Ident(module)}
	out := make(map[string][]byte)
	err := fs.WalkDir(Init, "init", func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		content, err := render(Init, p, d)
		if err != nil {
			return err
		}
		out[strings.TrimSuffix(path.Base(p), ".tmpl")] = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ident converts s into an exported identifier: separators are dropped and
// each word is capitalized. CYCLE_1 → Cycle1, user-auth → UserAuth.
func Ident(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			if upper {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			upper = false
		case unicode.IsDigit(r):
			b.WriteRune(r)
			upper = true
		default:
			upper = true
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

// render parses the named embedded file as a text/template. Files without a
// .tmpl suffix are returned verbatim.
func render(fsys fs.FS, name string, d Data) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	if !strings.HasSuffix(name, ".tmpl") {
		return raw, nil
	}
	tmpl, err := template.New(path.Base(name)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func expand(pattern string, d Data) string {
	return strings.NewReplacer("{{.CycleID}}", d.CycleID, "{{.Module}}", d.Module).Replace(pattern)
}
