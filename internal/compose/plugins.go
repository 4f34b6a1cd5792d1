package compose

import (
	"path/filepath"
	"slices"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/discovery"
	"github.com/wolfeidau/keystone/internal/target"
	"github.com/wolfeidau/keystone/internal/versions"
)

const typeCheckerMemoryLimit = 4096

// plugins assembles the plugin list. Order is significant: watch handling and
// code generation run before the base plugins, constants and reporting after.
func (c *Composer) plugins(t target.Target, base []buildconfig.Plugin, stamp versions.Stamp, outputPath string) []buildconfig.Plugin {
	layout := c.opts.Layout

	out := []buildconfig.Plugin{
		{
			// lib and .tmp are written by the build script plugin
			Name: buildconfig.WatchIgnorePlugin,
			Options: map[string]any{"paths": []string{
				filepath.Join(layout.AppPath, discovery.LibDir),
				filepath.Join(layout.AppPath, ".tmp"),
			}},
		},
		{Name: buildconfig.ExtraWatchPlugin, Options: map[string]any{"files": slices.Clone(WatchGlobs)}},
		{Name: buildconfig.DefinitionGeneratorPlugin},
		{Name: buildconfig.BuildScriptPlugin},
	}

	for _, p := range base {
		out = append(out, buildconfig.Plugin{Name: p.Name, Options: p.Options})
	}

	out = append(out,
		buildconfig.Plugin{Name: buildconfig.TypeCheckerPlugin, Options: c.typeChecker()},
		buildconfig.Plugin{Name: buildconfig.DefinePlugin, Options: map[string]any{"definitions": c.opts.Env.Defines(stamp)}},
	)

	if t.IsServer() {
		out = append(out,
			buildconfig.Plugin{Name: buildconfig.VersionGeneratorPlugin, Options: map[string]any{
				"nodeModules": c.NodeModules()[0],
				"outputPath":  filepath.Join(layout.AppPath, "build"),
			}},
			buildconfig.Plugin{Name: buildconfig.CopyPlugin, Options: map[string]any{
				"patterns": []map[string]any{{
					"from":             filepath.Join(layout.AppPath, "public"),
					"to":               filepath.Join(outputPath, "public"),
					"noErrorOnMissing": true,
				}},
			}},
		)
	}

	out = append(out, buildconfig.Plugin{
		Name:    buildconfig.StatsPlugin,
		Options: map[string]any{"filename": buildconfig.StatsFile(string(t.Name))},
	})

	if c.opts.AnalyzeBundle {
		out = append(out, buildconfig.Plugin{
			Name: buildconfig.BundleAnalyzerPlugin,
			Options: map[string]any{
				"analyzerMode":   "static",
				"reportFilename": buildconfig.AnalysisReportFile(string(t.Name)),
			},
		})
	}

	return out
}

// typeChecker configures type checking, linting with eslint by default,
// tslint on request, or not at all.
func (c *Composer) typeChecker() map[string]any {
	project := filepath.Dir(c.opts.Layout.AppSrc())

	opts := map[string]any{
		"typescript": map[string]any{
			"enabled":     true,
			"configFile":  filepath.Join(project, "tsconfig.json"),
			"memoryLimit": typeCheckerMemoryLimit,
		},
		"formatter": "basic",
	}

	switch {
	case c.opts.DisableLinter:
	case c.opts.UseTSLint:
		opts["tslint"] = filepath.Join(project, "tslint.json")
	default:
		opts["eslint"] = map[string]any{
			"enabled": true,
			"files":   "./src/**/*.{ts,tsx,js,jsx}",
		}
	}

	return opts
}
