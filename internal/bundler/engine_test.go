package bundler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/chunks"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/externals"
	"github.com/wolfeidau/keystone/internal/settings"
	"github.com/wolfeidau/keystone/internal/target"
)

func writeFile(t *testing.T, dir, rel, body string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func nullRule() buildconfig.Rule {
	return buildconfig.Rule{Test: `\.(s?css|d\.tsx?|md|js\.map)$`, Loader: buildconfig.NullLoader}
}

func TestNamePattern(t *testing.T) {
	tests := []struct {
		filename string
		fallback string
		want     string
	}{
		{"", "[name]", "[name]"},
		{"server.js", "[name]", "[name]"},
		{"static/js/[name].js", "[name]", "static/js/[name]"},
		{"static/js/[name].[contenthash].js", "[name]", "static/js/[name].[hash]"},
		{"static/js/[id].[contenthash].chunk.js", "chunk-[hash]", "static/js/[name].[hash].chunk"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, namePattern(tt.filename, tt.fallback))
		})
	}
}

func TestEntryModule(t *testing.T) {
	got := entryModule([]string{
		"webpack-dev-server/client?http://localhost:3001/",
		"/app/entry/webpack-public-path.js",
		"/app/node_modules/@msdyn365-commerce/bootloader/entry/client.js",
	})
	assert.Equal(t,
		"import \"/app/entry/webpack-public-path.js\";\nimport \"/app/node_modules/@msdyn365-commerce/bootloader/entry/client.js\";\n",
		got)
}

func TestBuildOptions(t *testing.T) {
	_, err := BuildOptions(buildconfig.Config{})
	require.ErrorIs(t, err, ErrNoEntries)

	server := buildconfig.Config{
		Name:    "server",
		Mode:    "production",
		Target:  target.NodePlatform,
		Context: "/work/app",
		Entry:   entries.EntryMap{"server": {"/work/entry/server.js"}},
		Output:  buildconfig.Output{Path: "/work/app/build", Filename: "server.js"},
	}
	opts, err := BuildOptions(server)
	require.NoError(t, err)
	assert.Equal(t, api.PlatformNode, opts.Platform)
	assert.Equal(t, api.FormatCommonJS, opts.Format)
	assert.True(t, opts.MinifySyntax)
	assert.False(t, opts.Splitting)
	assert.Equal(t, []string{"keystone-entry:server"}, opts.EntryPoints)
	assert.Equal(t, api.SourceMapNone, opts.Sourcemap)

	client := buildconfig.Config{
		Name:    "client",
		Mode:    "development",
		Target:  target.WebPlatform,
		Context: "/work/app",
		Entry: entries.EntryMap{
			"client":                            {"/work/entry/client.js"},
			"@msdyn365-commerce-modules/header": {"/work/app/lib/@msdyn365-commerce-modules/header/module-registration.js"},
		},
		Output:       buildconfig.Output{Path: "/work/app/build/public", SourceMapFilename: "[file].map"},
		Optimization: buildconfig.Optimization{SplitChunks: chunks.SplitChunks{Enabled: true}},
	}
	opts, err = BuildOptions(client)
	require.NoError(t, err)
	assert.Equal(t, api.PlatformBrowser, opts.Platform)
	assert.Equal(t, api.FormatESModule, opts.Format)
	assert.True(t, opts.Splitting)
	assert.False(t, opts.MinifySyntax)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
	assert.Equal(t, []string{"keystone-entry:client", "keystone-entry:msdyn365-commerce-modules-header"}, opts.EntryPoints)
}

func TestBuild_Server(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "src/server.js", `import React from "react";
import "./server.scss";
export const oun = process.env.MSDyn365Commerce_OUN;
console.log(React, oun);
`)
	writeFile(t, dir, "src/server.scss", "body { color: red; }")

	cfg := buildconfig.Config{
		Name:      "server",
		Mode:      "development",
		Target:    target.NodePlatform,
		Context:   dir,
		Entry:     entries.EntryMap{"server": {entry}},
		Output:    buildconfig.Output{Path: filepath.Join(dir, "build"), Filename: "server.js"},
		Externals: externals.Resolve(target.Server, nil),
		Module:    buildconfig.Module{Rules: []buildconfig.Rule{nullRule()}},
		Plugins: []buildconfig.Plugin{
			{Name: buildconfig.DefinePlugin, Options: map[string]any{"definitions": map[string]string{
				"process.env.MSDyn365Commerce_OUN": `"128"`,
			}}},
			{Name: buildconfig.StatsPlugin, Options: map[string]any{"filename": "stats-server.json"}},
		},
	}

	engine := New()
	stats, err := engine.Build(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, stats.Outputs, 1)
	assert.Equal(t, "build/server.js", filepath.ToSlash(stats.Outputs[0].Path))
	assert.Equal(t, "server", stats.Outputs[0].EntryPoint)
	assert.NotEmpty(t, stats.Outputs[0].Checksum)
	assert.Nil(t, stats.CacheGroups)

	out, err := os.ReadFile(filepath.Join(dir, "build", "server.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `require("react")`)
	assert.Contains(t, string(out), `"128"`)
	assert.NotContains(t, string(out), "color: red")

	data, err := os.ReadFile(filepath.Join(dir, "build", "stats-server.json"))
	require.NoError(t, err)
	var written Stats
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, stats.Fingerprint, written.Fingerprint)

	fingerprint, err := buildconfig.Fingerprint(cfg)
	require.NoError(t, err)
	assert.Equal(t, fingerprint, stats.Fingerprint)

	assert.Equal(t, map[string][]string{"server": {"server.js"}}, stats.Scripts)
	assert.Equal(t, stats.Scripts, written.Scripts)
}

func TestBuild_ClientSplitting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/left-pad/package.json", `{"name":"left-pad","main":"index.js"}`)
	writeFile(t, dir, "node_modules/left-pad/index.js", `module.exports = function pad(s) { return " " + s; };`)
	shell := writeFile(t, dir, "src/shell.js", `import React from "react";
import pad from "left-pad";
console.log(React, pad("shell"));
`)
	header := writeFile(t, dir, "src/header.js", `import pad from "left-pad";
console.log(pad("header"));
`)

	rules, _ := chunks.CacheGroups(target.Client, settings.PlatformSettings{}, nil)
	cfg := buildconfig.Config{
		Name:      "client",
		Mode:      "development",
		Target:    target.WebPlatform,
		Context:   dir,
		Entry:     entries.EntryMap{"client": {shell}, "header": {header}},
		Output:    buildconfig.Output{Path: filepath.Join(dir, "build", "public"), Filename: "static/js/[name].js"},
		Externals: externals.Resolve(target.Client, nil),
		Optimization: buildconfig.Optimization{SplitChunks: chunks.SplitChunks{
			Enabled:     true,
			CacheGroups: rules,
		}},
		Plugins: []buildconfig.Plugin{{Name: buildconfig.BundleAnalyzerPlugin}},
	}

	engine := New()
	stats, err := engine.Build(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"node_modules/left-pad/index.js"}, stats.CacheGroups["vendors"])
	assert.ElementsMatch(t, []string{"src/header.js", "src/shell.js"}, stats.CacheGroups[chunks.DefaultChunk])

	var entryPoints []string
	for _, out := range stats.Outputs {
		if out.EntryPoint != "" {
			entryPoints = append(entryPoints, out.EntryPoint)
		}
	}
	assert.ElementsMatch(t, []string{"client", "header"}, entryPoints)

	shellOut, err := os.ReadFile(filepath.Join(dir, "build", "public", "static", "js", "client.js"))
	require.NoError(t, err)
	assert.Contains(t, string(shellOut), `globalThis["React"]`)

	scripts := stats.Scripts["client"]
	require.GreaterOrEqual(t, len(scripts), 2, "shared code is split into a chunk")
	assert.Equal(t, "static/js/client.js", scripts[0])
	assert.Equal(t, "static/js/header.js", stats.Scripts["header"][0])
	for _, script := range scripts[1:] {
		assert.FileExists(t, filepath.Join(dir, "build", "public", filepath.FromSlash(script)))
	}

	_, err = os.Stat(filepath.Join(dir, "build", "public", "stats-client.json"))
	require.NoError(t, err)

	report, err := os.ReadFile(filepath.Join(dir, "build", "public", "bundle-client-analysis.html"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "<pre>")
}

func TestBuild_Errors(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "src/broken.js", `import "./missing";`)

	engine := New()
	_, err := engine.Build(context.Background(), buildconfig.Config{
		Name:    "client",
		Target:  target.WebPlatform,
		Context: dir,
		Entry:   entries.EntryMap{"client": {entry}},
		Output:  buildconfig.Output{Path: filepath.Join(dir, "build")},
	})
	require.ErrorIs(t, err, ErrBuildFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Build(ctx, buildconfig.Config{})
	require.ErrorIs(t, err, context.Canceled)
}
