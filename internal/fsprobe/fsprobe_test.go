package fsprobe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstExisting(t *testing.T) {
	exists := Set("/local/client.js", "/hoisted/client.js")

	got, err := FirstExisting(exists, "/hoisted/client.js", "/local/client.js")
	require.NoError(t, err)
	require.Equal(t, "/hoisted/client.js", got)

	got, err = FirstExisting(exists, "/missing.js", "/local/client.js")
	require.NoError(t, err)
	require.Equal(t, "/local/client.js", got)

	_, err = FirstExisting(exists, "/a.js", "/b.js")
	require.ErrorIs(t, err, ErrNoCandidate)
	require.Contains(t, err.Error(), "/a.js, /b.js")
}

func TestFirstExistingOS(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "entry.js")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0600))

	got, err := FirstExisting(nil, filepath.Join(dir, "nope.js"), file)
	require.NoError(t, err)
	require.Equal(t, file, got)
}
