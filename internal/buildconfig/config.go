// Package buildconfig models the configuration object consumed by the
// external bundler engine.
package buildconfig

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"

	"github.com/wolfeidau/keystone/internal/chunks"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/externals"
)

// Config is the composed bundler configuration for one build target.
type Config struct {
	Name         string           `json:"name,omitempty"`
	Mode         string           `json:"mode,omitempty"`
	Target       string           `json:"target,omitempty"`
	Context      string           `json:"context,omitempty"`
	Entry        entries.EntryMap `json:"entry"`
	Output       Output           `json:"output"`
	Resolve      Resolve          `json:"resolve"`
	Externals    externals.Map    `json:"externals,omitempty"`
	Module       Module           `json:"module"`
	Optimization Optimization     `json:"optimization"`
	Plugins      []Plugin         `json:"plugins"`
	Performance  *Performance     `json:"performance,omitempty"`
	Stats        *Stats           `json:"stats,omitempty"`
}

type Output struct {
	Path                          string `json:"path,omitempty" yaml:"path"`
	Filename                      string `json:"filename,omitempty" yaml:"filename"`
	ChunkFilename                 string `json:"chunkFilename,omitempty" yaml:"chunkFilename"`
	PublicPath                    string `json:"publicPath,omitempty" yaml:"publicPath"`
	SourceMapFilename             string `json:"sourceMapFilename,omitempty" yaml:"sourceMapFilename"`
	DevtoolModuleFilenameTemplate string `json:"devtoolModuleFilenameTemplate,omitempty" yaml:"devtoolModuleFilenameTemplate"`
}

type Resolve struct {
	Extensions []string          `json:"extensions" yaml:"extensions"`
	Alias      map[string]string `json:"alias" yaml:"alias"`
	Fallback   map[string]bool   `json:"fallback,omitempty" yaml:"fallback"`
}

type Module struct {
	Rules []Rule `json:"rules"`
}

// Rule is one module loader rule. Patterns are regular expression sources.
type Rule struct {
	Test    string       `json:"test,omitempty"`
	Exclude string       `json:"exclude,omitempty"`
	Include []Condition  `json:"include,omitempty"`
	Enforce string       `json:"enforce,omitempty"`
	Loader  string       `json:"loader,omitempty"`
	Use     []Loader     `json:"use,omitempty"`
	Resolve *RuleResolve `json:"resolve,omitempty"`
}

// Condition holds for a file when Test (if set) matches and Not (if set) does
// not. A rule's Include list is satisfied when any condition holds.
type Condition struct {
	Test string `json:"test,omitempty"`
	Not  string `json:"not,omitempty"`
}

// Holds reports whether the condition holds for a module path. Invalid
// patterns never match.
func (c Condition) Holds(path string) bool {
	if c.Test != "" && !matches(c.Test, path) {
		return false
	}
	if c.Not != "" && matches(c.Not, path) {
		return false
	}
	return c.Test != "" || c.Not != ""
}

// Applies reports whether the rule handles a module path.
func (r Rule) Applies(path string) bool {
	if r.Test != "" && !matches(r.Test, path) {
		return false
	}
	if r.Exclude != "" && matches(r.Exclude, path) {
		return false
	}
	if len(r.Include) == 0 {
		return true
	}
	return slices.ContainsFunc(r.Include, func(c Condition) bool { return c.Holds(path) })
}

func matches(pattern, path string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

type Loader struct {
	Loader  string         `json:"loader"`
	Options map[string]any `json:"options,omitempty"`
}

type RuleResolve struct {
	FullySpecified bool `json:"fullySpecified"`
}

type Optimization struct {
	RuntimeChunk       RuntimeChunk       `json:"runtimeChunk,omitzero"`
	ChunkIDs           string             `json:"chunkIds,omitempty"`
	ModuleIDs          string             `json:"moduleIds,omitempty"`
	FlagIncludedChunks bool               `json:"flagIncludedChunks,omitempty"`
	ConcatenateModules bool               `json:"concatenateModules,omitempty"`
	SplitChunks        chunks.SplitChunks `json:"splitChunks"`
}

// RuntimeChunk is either "single" or a named runtime chunk.
type RuntimeChunk string

const SingleRuntimeChunk RuntimeChunk = "single"

func (r RuntimeChunk) MarshalJSON() ([]byte, error) {
	if r == SingleRuntimeChunk || r == "" {
		return json.Marshal(string(r))
	}
	return json.Marshal(map[string]string{"name": string(r)})
}

// Plugin describes one auxiliary bundler plugin and its options.
type Plugin struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options"`
}

type Performance struct {
	MaxEntrypointSize int `json:"maxEntrypointSize" yaml:"maxEntrypointSize"`
	MaxAssetSize      int `json:"maxAssetSize" yaml:"maxAssetSize"`
}

type Stats struct {
	ErrorDetails bool `json:"errorDetails"`
}

// Plugin returns the first plugin with the given name.
func (c Config) Plugin(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// Defines returns the compile-time constants of the define plugin.
func (c Config) Defines() map[string]string {
	p, ok := c.Plugin(DefinePlugin)
	if !ok {
		return nil
	}
	defs, _ := p.Options["definitions"].(map[string]string)
	return defs
}

// Clone returns a copy that shares no maps or slices with c.
func (c Config) Clone() Config {
	out := c
	out.Entry = c.Entry.Clone()
	out.Resolve.Extensions = slices.Clone(c.Resolve.Extensions)
	out.Resolve.Alias = maps.Clone(c.Resolve.Alias)
	out.Resolve.Fallback = maps.Clone(c.Resolve.Fallback)
	out.Externals = c.Externals.Clone()
	out.Module.Rules = slices.Clone(c.Module.Rules)
	out.Optimization.SplitChunks.CacheGroups = slices.Clone(c.Optimization.SplitChunks.CacheGroups)

	if c.Plugins != nil {
		out.Plugins = make([]Plugin, len(c.Plugins))
		for i, p := range c.Plugins {
			out.Plugins[i] = Plugin{Name: p.Name, Options: maps.Clone(p.Options)}
		}
	}
	if c.Performance != nil {
		perf := *c.Performance
		out.Performance = &perf
	}
	if c.Stats != nil {
		stats := *c.Stats
		out.Stats = &stats
	}
	return out
}
