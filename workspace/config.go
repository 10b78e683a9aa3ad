package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the workspace-level chigraph.toml settings. LoadConfig
// parses them; no cli command reads them.
type Config struct {
	Build   BuildConfig   `toml:"build"`
	Janitor JanitorConfig `toml:"janitor"`
	Watch   WatchConfig   `toml:"watch"`
}

// BuildConfig controls the C-interop toolchain used by ccall.
type BuildConfig struct {
	CCompiler   string   `toml:"c_compiler"`
	IncludeDirs []string `toml:"include_dirs"`
}

// JanitorConfig controls the background cache-pruning schedule.
type JanitorConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// WatchConfig holds the [watch] section. Watcher does not read
// DebounceMs; it debounces with the fixed watchDebounce.
type WatchConfig struct {
	DebounceMs int `toml:"debounce_ms"`
}

// DefaultConfig returns the settings used when no chigraph.toml is
// present or a field is left unset.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			CCompiler: "clang",
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "@every 1h",
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
	}
}

// ConfigPath returns the conventional chigraph.toml location for a
// workspace root.
func ConfigPath(root string) string {
	return filepath.Join(root, "chigraph.toml")
}

// LoadConfig reads <root>/chigraph.toml, merging it over DefaultConfig.
// A missing file is not an error: the defaults are returned as-is.
func LoadConfig(root string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(root)) // #nosec G304 -- path is the workspace's own well-known config file
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("workspace: reading chigraph.toml: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("workspace: parsing chigraph.toml: %w", err)
	}
	return cfg, nil
}
