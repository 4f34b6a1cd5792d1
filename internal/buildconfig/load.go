package buildconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"

	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/settings"
	"github.com/wolfeidau/keystone/internal/target"
)

// ErrInvalidConfig indicates a base configuration file could not be used.
var ErrInvalidConfig = errors.New("invalid base configuration")

// Default returns the base configuration of a target before composition, the
// equivalent of what the host build tool hands over for a plain project.
func Default(t target.Target, layout entries.Layout) Config {
	build := filepath.Join(layout.AppPath, "build")

	cfg := Config{
		Name:    string(t.Name),
		Mode:    string(t.Env),
		Target:  t.Platform(),
		Context: layout.AppPath,
		Resolve: Resolve{
			Extensions: []string{".mjs", ".json"},
			Alias:      map[string]string{},
		},
	}

	if t.IsServer() {
		cfg.Entry = entries.EntryMap{entries.ServerEntry: {filepath.Join(layout.AppSrc(), "server.js")}}
		cfg.Output = Output{Path: build, Filename: "server.js"}
		return cfg
	}

	cfg.Entry = entries.EntryMap{entries.ClientEntry: {filepath.Join(layout.AppSrc(), "client.js")}}
	cfg.Output = Output{
		Path:          filepath.Join(build, "public"),
		Filename:      "static/js/[name].js",
		ChunkFilename: "static/js/[name].chunk.js",
	}
	if !t.Dev() {
		cfg.Output.Filename = "static/js/[name].[contenthash].js"
	}
	return cfg
}

// file is the subset of a configuration that may be supplied on disk.
type file struct {
	Name        string           `json:"name" yaml:"name"`
	Mode        string           `json:"mode" yaml:"mode"`
	Context     string           `json:"context" yaml:"context"`
	Entry       entries.EntryMap `json:"entry" yaml:"entry"`
	Output      Output           `json:"output" yaml:"output"`
	Resolve     Resolve          `json:"resolve" yaml:"resolve"`
	Plugins     []Plugin         `json:"plugins" yaml:"plugins"`
	Performance *Performance     `json:"performance" yaml:"performance"`
}

// Load reads a base configuration from a JSON or YAML file and completes any
// field it leaves unset from defaults. Alias maps are merged key by key with
// the file winning.
func Load(path string, defaults Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read base config %s: %w", path, err)
	}

	var f file
	if err := settings.Decode(path, data, &f); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for name, paths := range f.Entry {
		if len(paths) == 0 {
			return Config{}, fmt.Errorf("%w: entry %q has no paths", ErrInvalidConfig, name)
		}
	}

	cfg := Config{
		Name:        f.Name,
		Mode:        f.Mode,
		Context:     f.Context,
		Entry:       f.Entry,
		Output:      f.Output,
		Resolve:     f.Resolve,
		Plugins:     f.Plugins,
		Performance: f.Performance,
	}

	base := defaults.Clone()
	if len(cfg.Entry) > 0 {
		// entries replace the defaults wholesale
		base.Entry = nil
	}
	if err := mergo.Merge(&cfg, base); err != nil {
		return Config{}, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// derived from the target, never from the file
	cfg.Target = defaults.Target

	return cfg, nil
}
