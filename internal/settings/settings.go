// Package settings reads the static site-level platform settings file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project-relative location of the settings file.
const DefaultFileName = "platform.settings.json"

// PlatformSettings is read once per build and never mutated by the composer.
type PlatformSettings struct {
	ExcludedModules            []string `json:"excludedModules" yaml:"excludedModules"`
	MinClientChunkSize         int      `json:"minClientChunkSize" yaml:"minClientChunkSize"`
	MaxClientChunkSize         *int     `json:"maxClientChunkSize" yaml:"maxClientChunkSize"`
	EnableChunkByModulePackage bool     `json:"enableChunkByModulePackage" yaml:"enableChunkByModulePackage"`
}

// Load reads the settings file at path. A missing file is not an error: it
// means no customization was requested and all fields keep their defaults.
func Load(path string) (PlatformSettings, error) {
	var s PlatformSettings

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read platform settings %s: %w", path, err)
	}

	if err := Decode(path, data, &s); err != nil {
		return s, err
	}

	return s, nil
}

// Decode unmarshals JSON or YAML depending on the file extension.
func Decode(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return nil
}

// Excluded returns the excluded module ids as a set.
func (s PlatformSettings) Excluded() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ExcludedModules))
	for _, id := range s.ExcludedModules {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// ExcludedSorted returns the de-duplicated excluded module ids in sorted order.
func (s PlatformSettings) ExcludedSorted() []string {
	set := s.Excluded()
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s PlatformSettings) IsExcluded(id string) bool {
	_, ok := s.Excluded()[id]
	return ok
}
