package compose

import (
	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/target"
)

// Loader rule patterns. They are Go regexp sources, which the bundler engine
// accepts unchanged as plugin filters.
const (
	SVGPattern        = `\.svg$`
	NullPattern       = `\.(s?css|d\.tsx?|md|js\.map)$`
	SourcePattern     = `\.(t|j)sx?$`
	TypeScriptPattern = `\.tsx?$`
	InjectorPattern   = `script-injector$`
	ScriptPattern     = `\.jsx?$`
)

// scriptIncludes decides which plain scripts are transpiled: platform
// packages shipped as dist or build output, symlinked dist/lib layouts, the
// bootloader entry and common folders minus tests, and everything outside
// node_modules.
var scriptIncludes = []buildconfig.Condition{
	{Test: `@msdyn365-commerce(-modules)?[\\/]?.+[\\/](dist|build)`},
	{Test: `dist[\\/]lib`},
	{Test: `bootloader[\\/](entry|common)`, Not: `__tests__`},
	{Not: `node_modules`},
}

func babelOptions(t target.Target) map[string]any {
	return map[string]any{
		"envName":          string(t.Env),
		"caller":           map[string]any{"name": "keystone", "target": t.Platform()},
		"cacheDirectory":   true,
		"cacheCompression": false,
	}
}

// moduleRules replaces the base loader rules wholesale; file loaders from the
// host tool are not wanted.
func moduleRules(t target.Target) []buildconfig.Rule {
	babel := buildconfig.Loader{Loader: "babel-loader", Options: babelOptions(t)}

	return []buildconfig.Rule{
		{
			Test: SVGPattern,
			Use: []buildconfig.Loader{{
				Loader: "react-svg-loader",
				// keep viewBox so icons can be resized
				Options: map[string]any{"svgo": map[string]any{"plugins": []map[string]bool{{"removeViewBox": false}}}},
			}},
		},
		{Test: NullPattern, Loader: buildconfig.NullLoader},
		{Test: SourcePattern, Loader: "source-map-loader", Enforce: "pre"},
		{
			Test:    TypeScriptPattern,
			Exclude: `node_modules`,
			Use: []buildconfig.Loader{
				babel,
				{Loader: "ts-loader", Options: map[string]any{"transpileOnly": true}},
			},
		},
		{Test: InjectorPattern, Resolve: &buildconfig.RuleResolve{FullySpecified: true}},
		{
			Test:    ScriptPattern,
			Include: scriptIncludes,
			Resolve: &buildconfig.RuleResolve{FullySpecified: false},
			Use:     []buildconfig.Loader{babel},
		},
	}
}
