package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigReturnsDefaultsWhenFileAbsent(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Build.CCompiler != "clang" {
		t.Fatalf("expected default c_compiler \"clang\", got %q", cfg.Build.CCompiler)
	}
	if !cfg.Janitor.Enabled {
		t.Fatal("expected janitor enabled by default")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	toml := `
[build]
c_compiler = "gcc"
include_dirs = ["/usr/local/include"]

[janitor]
enabled = false
schedule = "@every 30m"
`
	if err := os.WriteFile(filepath.Join(root, "chigraph.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Build.CCompiler != "gcc" {
		t.Fatalf("expected c_compiler override \"gcc\", got %q", cfg.Build.CCompiler)
	}
	if len(cfg.Build.IncludeDirs) != 1 || cfg.Build.IncludeDirs[0] != "/usr/local/include" {
		t.Fatalf("unexpected include_dirs: %v", cfg.Build.IncludeDirs)
	}
	if cfg.Janitor.Enabled {
		t.Fatal("expected janitor.enabled override to false")
	}
	if cfg.Janitor.Schedule != "@every 30m" {
		t.Fatalf("expected schedule override, got %q", cfg.Janitor.Schedule)
	}
	// Watch section was not set in the file, so it should keep its default.
	if cfg.Watch.DebounceMs != 200 {
		t.Fatalf("expected unmodified watch.debounce_ms default of 200, got %d", cfg.Watch.DebounceMs)
	}
}
