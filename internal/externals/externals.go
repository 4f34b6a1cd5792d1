// Package externals decides which dependencies are left out of the bundle and
// resolved at runtime instead.
package externals

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/wolfeidau/keystone/internal/target"
)

// Kind is the runtime-resolution strategy of an external dependency.
type Kind string

const (
	// Global binds the dependency to a global variable supplied by the host
	// shell (client builds).
	Global Kind = "global"
	// Module passes the import through to the server module system.
	Module Kind = "module"
	// CommonJS resolves the dependency with a commonjs2 require.
	CommonJS Kind = "commonjs2"
	// Empty replaces the dependency with an empty object.
	Empty Kind = "empty"
)

// Strategy describes how one external is satisfied at runtime.
type Strategy struct {
	Kind  Kind
	Value string
}

// String renders the strategy the way the bundler's externals section expects.
func (s Strategy) String() string {
	switch s.Kind {
	case CommonJS:
		return "commonjs2 " + s.Value
	case Empty:
		return "{}"
	default:
		return s.Value
	}
}

func (s Strategy) MarshalJSON() ([]byte, error) {
	if s.Kind == Empty {
		return []byte("{}"), nil
	}
	return json.Marshal(s.String())
}

// Map maps a dependency id to its runtime strategy.
type Map map[string]Strategy

// Keys returns the dependency ids in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

func (m Map) Clone() Map {
	return maps.Clone(m)
}

func client() Map {
	return Map{
		"react":       {Kind: Global, Value: "React"},
		"react-dom":   {Kind: Global, Value: "ReactDOM"},
		"async_hooks": {Kind: Empty},
		"bootstrap":   {Kind: Global, Value: "bootstrap"},
	}
}

func server() Map {
	return Map{
		"react":                  {Kind: Module, Value: "react"},
		"react-dom":              {Kind: Module, Value: "react-dom"},
		"react-dom/server":       {Kind: Module, Value: "react-dom/server"},
		"node-sass":              {Kind: CommonJS, Value: "node-sass"},
		"bootstrap":              {Kind: CommonJS, Value: "bootstrap"},
		"long":                   {Kind: Module, Value: "long"},
		"uglify-es":              {Kind: Module, Value: "uglify-es"},
		"uglify-es/package.json": {Kind: Module, Value: "uglify-es/package.json"},
		"fast-json-stringify":    {Kind: Module, Value: "fast-json-stringify"},
	}
}

// Resolve returns the externals for a build target. Host-provided libraries
// differ per target; every excluded module package is appended as a commonjs2
// runtime dependency regardless of target.
func Resolve(name target.Name, excluded []string) Map {
	var out Map
	if name == target.Server {
		out = server()
	} else {
		out = client()
	}

	for _, id := range excluded {
		if id == "" {
			continue
		}
		out[id] = Strategy{Kind: CommonJS, Value: id}
	}

	return out
}
