package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/keystone/internal/buildconfig"
)

var watchGlobs = []string{
	"src/modules/**/*.definition.json",
	"src/modules/**/*.data.ts",
	"src/styles/**/*.scss",
	"src/**/themes/**/*.scss",
}

func TestMatches(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{
		Root:   root,
		Globs:  append([]string{SourceGlob}, watchGlobs...),
		Files:  []string{"platform.settings.json"},
		Ignore: []string{filepath.Join(root, "build")},
	})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"src/modules/header/header.definition.json", true},
		{"src/modules/header/header.data.ts", true},
		{"src/modules/header/header.tsx", true},
		{"src/styles/base/main.scss", true},
		{"src/site/themes/fabrikam/theme.scss", true},
		{"platform.settings.json", true},
		{"src/modules/header/README.md", false},
		{"lib/__local__/module-registration.js", false},
		{"node_modules/react/index.js", false},
		{".tmp/generated/index.ts", false},
		{"src/.cache/x.ts", false},
		{"build/src/modules/a/b.data.ts", false},
		{"package.json", false},
		{filepath.Join(root, "src", "styles", "x", "y.scss"), true},
		{filepath.Join(filepath.Dir(root), "elsewhere", "src", "a", "b.ts"), false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Matches(filepath.FromSlash(tt.path)))
		})
	}
}

func TestNew_InvalidGlob(t *testing.T) {
	_, err := New(Options{Root: t.TempDir(), Globs: []string{"src/[a-"}})
	require.ErrorIs(t, err, ErrInvalidGlob)
}

func TestFromConfig(t *testing.T) {
	root := t.TempDir()
	cfg := buildconfig.Config{Plugins: []buildconfig.Plugin{
		{Name: buildconfig.WatchIgnorePlugin, Options: map[string]any{"paths": []string{filepath.Join(root, "generated")}}},
		{Name: buildconfig.ExtraWatchPlugin, Options: map[string]any{"files": watchGlobs}},
	}}

	w, err := FromConfig(root, cfg, "platform.settings.json")
	require.NoError(t, err)

	assert.True(t, w.Matches("src/modules/a/a.definition.json"))
	assert.True(t, w.Matches("src/app/index.ts"))
	assert.True(t, w.Matches("platform.settings.json"))
	assert.False(t, w.Matches("generated/src/app/index.ts"))
}

func TestRun_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "modules", "header"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "react"), 0755))

	w, err := New(Options{Root: root, Globs: watchGlobs, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilt := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			select {
			case rebuilt <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	target := filepath.Join(root, "src", "modules", "header", "header.definition.json")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	// keep writing until the watcher has registered the tree and reacts
	for waiting := true; waiting; {
		select {
		case <-rebuilt:
			waiting = false
		case <-tick.C:
			require.NoError(t, os.WriteFile(target, []byte(`{}`), 0600))
		case <-deadline:
			t.Fatal("no rebuild triggered")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
