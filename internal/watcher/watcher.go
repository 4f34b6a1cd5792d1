// Package watcher triggers rebuilds when watched project files change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/keystone/internal/buildconfig"
)

// DefaultDebounce collapses bursts of events, such as an editor's atomic save
// or a branch checkout, into a single rebuild.
const DefaultDebounce = 300 * time.Millisecond

// SourceGlob matches the application sources tracked through the module graph.
const SourceGlob = "src/**/*.{ts,tsx,js,jsx}"

// ErrInvalidGlob indicates a watch glob could not be compiled
var ErrInvalidGlob = errors.New("invalid watch glob")

// skipped directories are never watched
var skipped = []string{"node_modules", "lib", ".tmp"}

type Options struct {
	// Root is the project directory; globs and files are relative to it.
	Root  string
	Globs []string
	// Files are project-relative paths watched verbatim.
	Files []string
	// Ignore lists absolute directories excluded from watching.
	Ignore   []string
	Debounce time.Duration
}

type Watcher struct {
	root     string
	globs    []glob.Glob
	files    []string
	ignore   []string
	debounce time.Duration
}

func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	w := &Watcher{root: root, debounce: opts.Debounce}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	for _, pattern := range opts.Globs {
		g, err := glob.Compile(filepath.ToSlash(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidGlob, pattern, err)
		}
		w.globs = append(w.globs, g)
	}
	for _, file := range opts.Files {
		w.files = append(w.files, filepath.ToSlash(filepath.Clean(file)))
	}
	for _, dir := range opts.Ignore {
		w.ignore = append(w.ignore, filepath.Clean(dir))
	}

	return w, nil
}

// FromConfig watches the extra globs and honors the ignored paths of a
// composed configuration, plus the sources and any extra files.
func FromConfig(root string, cfg buildconfig.Config, files ...string) (*Watcher, error) {
	opts := Options{Root: root, Globs: []string{SourceGlob}, Files: files}

	if p, ok := cfg.Plugin(buildconfig.ExtraWatchPlugin); ok {
		globs, _ := p.Options["files"].([]string)
		opts.Globs = append(opts.Globs, globs...)
	}
	if p, ok := cfg.Plugin(buildconfig.WatchIgnorePlugin); ok {
		opts.Ignore, _ = p.Options["paths"].([]string)
	}

	return New(opts)
}

// SetDebounce replaces the quiet period; non-positive values restore the
// default.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounce
	}
	w.debounce = d
}

// Matches reports whether a change to path should trigger a rebuild.
func (w *Watcher) Matches(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	if w.ignored(path) {
		return false
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if slices.Contains(skipped, part) || (strings.HasPrefix(part, ".") && len(part) > 1) {
			return false
		}
	}

	if slices.Contains(w.files, rel) {
		return true
	}
	for _, g := range w.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) skipDir(path string, name string) bool {
	if path == w.root {
		return false
	}
	return slices.Contains(skipped, name) || strings.HasPrefix(name, ".") || w.ignored(path)
}

// Run watches until ctx is done and calls rebuild after each burst of
// matching changes. Rebuild failures are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	logger := zerolog.Ctx(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}

	logger.Info().Str("root", w.root).Msg("watching for changes")

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if err := w.addTree(watcher, event.Name); err != nil {
					logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !w.Matches(event.Name) {
				continue
			}

			logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("file changed")
			pending = time.After(w.debounce)

		case <-pending:
			pending = nil
			logger.Info().Msg("rebuilding")
			if err := rebuild(ctx); err != nil {
				logger.Error().Err(err).Msg("rebuild failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches dir and every directory below it that is not skipped.
// Paths that are not directories are ignored.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path, d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}
