package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/config"
)

func TestInitProject_GeneratesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rel := range []string{
		"sigma.yaml",
		filepath.Join("memory-bank", "modules", "calc", "design.md"),
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("file %s not created: %v", rel, err)
		}
	}
}

func TestInitProject_DesignContent(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "user-auth", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "memory-bank", "modules", "user-auth", "design.md"))
	if err != nil {
		t.Fatalf("read design: %v", err)
	}
	content := string(data)
	for _, want := range []string{"# user-auth design", "```js", "function exampleUserAuth(input) {"} {
		if !strings.Contains(content, want) {
			t.Errorf("design.md missing %q:\n%s", want, content)
		}
	}
}

func TestInitProject_ConfigLoadsCleanly(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := config.LoadConfig(filepath.Join(dir, "sigma.yaml"))
	if err != nil {
		t.Fatalf("generated sigma.yaml does not load: %v", err)
	}
	if cfg.Parallel != config.DefaultParallel {
		t.Errorf("Parallel = %d, want %d", cfg.Parallel, config.DefaultParallel)
	}
	if cfg.MemoryBankRoot != config.DefaultMemoryBankRoot {
		t.Errorf("MemoryBankRoot = %q, want %q", cfg.MemoryBankRoot, config.DefaultMemoryBankRoot)
	}
}

func TestInitProject_ExistingConfigIsKept(t *testing.T) {
	dir := t.TempDir()
	custom := "memory_bank_root: docs/modules\nparallel: 4\n"
	if err := os.WriteFile(filepath.Join(dir, "sigma.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sigma.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != custom {
		t.Errorf("sigma.yaml was overwritten:\n%s", data)
	}
	// The design follows the existing config's memory bank root.
	if _, err := os.Stat(filepath.Join(dir, "docs", "modules", "calc", "design.md")); err != nil {
		t.Errorf("design not written under configured root: %v", err)
	}
}

func TestInitProject_GuardCheck(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("first init: %v", err)
	}

	err := initProject(dir, "calc", false)
	if err == nil {
		t.Fatal("expected error when design.md already exists")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error should mention --force, got: %v", err)
	}
}

func TestInitProject_Force(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("first init: %v", err)
	}
	designPath := filepath.Join(dir, "memory-bank", "modules", "calc", "design.md")
	if err := os.WriteFile(designPath, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := initProject(dir, "calc", true); err != nil {
		t.Fatalf("forced init: %v", err)
	}
	data, err := os.ReadFile(designPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "edited" {
		t.Error("--force did not regenerate design.md")
	}
}

func TestInitProject_SecondModuleSharesConfig(t *testing.T) {
	dir := t.TempDir()
	if err := initProject(dir, "calc", false); err != nil {
		t.Fatalf("first module: %v", err)
	}
	if err := initProject(dir, "parser", false); err != nil {
		t.Fatalf("second module: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "memory-bank", "modules", "parser", "design.md")); err != nil {
		t.Errorf("second design not created: %v", err)
	}
}

func TestInitProject_InvalidModule(t *testing.T) {
	cases := map[string]string{"empty": "", "parent": "../escape", "nested": "a/b"}
	for name, module := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := initProject(dir, module, false); err == nil {
				t.Errorf("expected error for module %q", module)
			}
			if _, err := os.Stat(filepath.Join(dir, "sigma.yaml")); err == nil {
				t.Error("sigma.yaml written despite invalid module")
			}
		})
	}
}
