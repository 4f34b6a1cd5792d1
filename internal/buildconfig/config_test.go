package buildconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/externals"
	"github.com/wolfeidau/keystone/internal/target"
)

var layout = entries.Layout{AppPath: "/work/app", EntryDir: "/work/keystone/entry"}

func TestDefault(t *testing.T) {
	server := Default(target.New(target.Server, target.Production), layout)
	assert.Equal(t, "node", server.Target)
	assert.Equal(t, "production", server.Mode)
	assert.Equal(t, []string{"/work/app/src/server.js"}, server.Entry[entries.ServerEntry])
	assert.Equal(t, "/work/app/build", server.Output.Path)

	clientDev := Default(target.New(target.Client, target.Development), layout)
	assert.Equal(t, "web", clientDev.Target)
	assert.Equal(t, "static/js/[name].js", clientDev.Output.Filename)

	clientProd := Default(target.New(target.Client, target.Production), layout)
	assert.Equal(t, "static/js/[name].[contenthash].js", clientProd.Output.Filename)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want func(t *testing.T, cfg Config)
	}{
		{
			name: "json overrides and keeps defaults",
			file: "base.json",
			body: `{"output":{"publicPath":"/assets/"},"resolve":{"alias":{"shared":"/work/shared"}}}`,
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/assets/", cfg.Output.PublicPath)
				assert.Equal(t, "/work/app/build", cfg.Output.Path)
				assert.Equal(t, "server.js", cfg.Output.Filename)
				assert.Equal(t, "/work/shared", cfg.Resolve.Alias["shared"])
				assert.Equal(t, []string{".mjs", ".json"}, cfg.Resolve.Extensions)
				assert.Equal(t, []string{"/work/app/src/server.js"}, cfg.Entry[entries.ServerEntry])
			},
		},
		{
			name: "yaml entries replace defaults",
			file: "base.yaml",
			body: "entry:\n  main:\n    - /work/app/src/main.js\nplugins:\n  - name: HotModuleReplacementPlugin\n",
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, []string{"main"}, cfg.Entry.Names())
				require.Len(t, cfg.Plugins, 1)
				assert.Equal(t, "HotModuleReplacementPlugin", cfg.Plugins[0].Name)
				assert.Equal(t, "node", cfg.Target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))

			cfg, err := Load(path, Default(target.New(target.Server, target.Production), layout))
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"entry":`), 0600))
	_, err := Load(bad, Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"entry":{"client":[]}}`), 0600))
	_, err = Load(empty, Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(filepath.Join(dir, "missing.json"), Config{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClone_Independent(t *testing.T) {
	orig := Default(target.New(target.Client, target.Development), layout)
	orig.Plugins = []Plugin{{Name: DefinePlugin, Options: map[string]any{"definitions": map[string]string{"a": "1"}}}}
	orig.Externals = externals.Resolve(target.Client, nil)

	cp := orig.Clone()
	cp.Entry[entries.ClientEntry][0] = "changed"
	cp.Resolve.Alias["x"] = "y"
	cp.Plugins[0].Options["extra"] = true
	delete(cp.Externals, "react")

	assert.Equal(t, "/work/app/src/client.js", orig.Entry[entries.ClientEntry][0])
	assert.NotContains(t, orig.Resolve.Alias, "x")
	assert.NotContains(t, orig.Plugins[0].Options, "extra")
	assert.Contains(t, orig.Externals, "react")
}

func TestDefines(t *testing.T) {
	cfg := Config{Plugins: []Plugin{
		{Name: StatsPlugin},
		{Name: DefinePlugin, Options: map[string]any{"definitions": map[string]string{"process.env.X": `"1"`}}},
	}}
	assert.Equal(t, map[string]string{"process.env.X": `"1"`}, cfg.Defines())
	assert.Nil(t, Config{}.Defines())
}

func TestRuntimeChunkJSON(t *testing.T) {
	data, err := json.Marshal(Optimization{RuntimeChunk: SingleRuntimeChunk})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runtimeChunk":"single"`)

	data, err = json.Marshal(Optimization{RuntimeChunk: "bootstrap"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runtimeChunk":{"name":"bootstrap"}`)

	data, err = json.Marshal(Optimization{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "runtimeChunk")
	assert.Contains(t, string(data), `"splitChunks":false`)
}

func TestFingerprint(t *testing.T) {
	a := Default(target.New(target.Client, target.Production), layout)
	b := a.Clone()

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	b.Resolve.Alias["partner"] = "/elsewhere"
	fc, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestStatsFile(t *testing.T) {
	assert.Equal(t, "stats-client.json", StatsFile("client"))
	assert.Equal(t, "bundle-server-analysis.html", AnalysisReportFile("server"))
}
