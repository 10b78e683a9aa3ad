package chijson

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IsYAML reports whether path's extension indicates a YAML document
// (.yaml or .yml), the same extension test the workspace layer uses to
// decide whether a .chigraph.yaml overlay needs normalizing before it
// reaches Decode.
func IsYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// NormalizeToJSON converts data to JSON bytes. If path names a YAML
// file it is parsed with yaml.v3 and re-encoded as JSON (map[string]any
// round-trips cleanly through both encoders); otherwise data is assumed
// to already be JSON and is returned unchanged.
func NormalizeToJSON(data []byte, path string) ([]byte, error) {
	if !IsYAML(path) {
		return data, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("chijson: parsing YAML %s: %w", path, err)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("chijson: re-encoding %s as JSON: %w", path, err)
	}
	return out, nil
}
