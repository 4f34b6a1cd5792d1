// Package compose turns a base bundler configuration into the final
// configuration for one build target.
package compose

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"dario.cat/mergo"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/chunks"
	"github.com/wolfeidau/keystone/internal/discovery"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/environment"
	"github.com/wolfeidau/keystone/internal/externals"
	"github.com/wolfeidau/keystone/internal/fsprobe"
	"github.com/wolfeidau/keystone/internal/settings"
	"github.com/wolfeidau/keystone/internal/target"
	"github.com/wolfeidau/keystone/internal/versions"
)

// DefaultDevPort is the dev transport port used when none is configured.
const DefaultDevPort = 3001

const (
	performanceMaxEntrypoint = 4000000
	performanceMaxAsset      = 400000
)

// WatchGlobs are the project-relative globs that trigger a rebuild in
// addition to the module graph.
var WatchGlobs = []string{
	"src/modules/**/*.definition.json",
	"src/modules/**/*.data.ts",
	"src/styles/**/*.scss",
	"src/**/themes/**/*.scss",
}

var scriptExtensions = []string{".ts", ".tsx", ".js"}

// Options configures a Composer. Everything a composition depends on besides
// the target and base configuration is fixed here.
type Options struct {
	Layout entries.Layout
	// SettingsPath defaults to the settings file in the app directory.
	SettingsPath      string
	ModuleEntryPoints bool
	DevPort           int
	UseTSLint         bool
	DisableLinter     bool
	AnalyzeBundle     bool
	Limits            chunks.RequestLimits
	Env               environment.Snapshot
	// Exists probes candidate paths, defaults to the local filesystem.
	Exists fsprobe.Exists
	// FS is the project tree scanned for module packages, defaults to the app
	// directory.
	FS fs.FS
}

// Composer composes configurations. It is safe for concurrent use; each call
// works on its own copy of the base configuration.
type Composer struct {
	opts        Options
	versionOnce sync.Once
}

func New(opts Options) *Composer {
	if opts.SettingsPath == "" {
		opts.SettingsPath = filepath.Join(opts.Layout.AppPath, settings.DefaultFileName)
	}
	if opts.DevPort == 0 {
		opts.DevPort = DefaultDevPort
	}
	if opts.Exists == nil {
		opts.Exists = fsprobe.OS
	}
	if opts.FS == nil {
		opts.FS = os.DirFS(opts.Layout.AppPath)
	}
	if opts.Limits == (chunks.RequestLimits{}) {
		opts.Limits = chunks.DefaultRequestLimits()
	}
	return &Composer{opts: opts}
}

// NodeModules returns the local then hoisted node_modules directories.
func (c *Composer) NodeModules() []string {
	return []string{
		filepath.Join(c.opts.Layout.AppPath, "node_modules"),
		filepath.Join(c.opts.Layout.AppPath, "..", "..", "node_modules"),
	}
}

// DevServerURL is the dev transport address injected into development client
// entries.
func (c *Composer) DevServerURL() string {
	return "http://" + c.opts.Env.Host + ":" + strconv.Itoa(c.opts.DevPort) + "/"
}

// Settings reads the platform settings file.
func (c *Composer) Settings() (settings.PlatformSettings, error) {
	return settings.Load(c.opts.SettingsPath)
}

// Discover lists the module packages of the project.
func (c *Composer) Discover(ctx context.Context, s settings.PlatformSettings) (discovery.Set, error) {
	return discovery.New(c.opts.FS).Discover(ctx, s.Excluded())
}

// Compose produces the final configuration for t. The base configuration is
// never modified.
func (c *Composer) Compose(ctx context.Context, t target.Target, base buildconfig.Config) (buildconfig.Config, error) {
	logger := zerolog.Ctx(ctx).With().Str("target", t.String()).Logger()
	ctx = logger.WithContext(ctx)

	s, err := c.Settings()
	if err != nil {
		return buildconfig.Config{}, err
	}
	excluded := s.Excluded()

	var discovered discovery.Set
	if t.IsClient() && (c.opts.ModuleEntryPoints || s.EnableChunkByModulePackage) {
		discovered, err = c.Discover(ctx, s)
		if err != nil {
			return buildconfig.Config{}, fmt.Errorf("failed to discover module packages: %w", err)
		}
	}

	stamp, err := versions.NewResolver(c.NodeModules()...).Resolve(ctx)
	if err != nil {
		return buildconfig.Config{}, err
	}

	resolver := &entries.Resolver{Layout: c.opts.Layout, Exists: c.opts.Exists, DevServerURL: c.DevServerURL()}
	entryMap, err := resolver.Resolve(entries.Request{
		Target:            t,
		Discovered:        discovered,
		Excluded:          excluded,
		ModuleEntryPoints: c.opts.ModuleEntryPoints,
		Base:              base.Entry,
	})
	if err != nil {
		return buildconfig.Config{}, err
	}

	partition := chunks.Build(t, chunks.Options{
		Settings:          s,
		Packages:          discovered.Packages(),
		ModuleEntryPoints: c.opts.ModuleEntryPoints,
		Limits:            c.opts.Limits,
	})

	for _, pkg := range partition.Skipped {
		logger.Warn().Str("package", pkg).Msg("module package named like a baseline cache group, no package chunk")
	}

	cfg := base.Clone()
	cfg.Name = string(t.Name)
	cfg.Mode = string(t.Env)
	cfg.Target = t.Platform()
	cfg.Entry = entryMap
	cfg.Externals = externals.Resolve(t.Name, s.ExcludedSorted())
	cfg.Module.Rules = moduleRules(t)
	cfg.Stats = &buildconfig.Stats{ErrorDetails: true}

	if err := c.resolveSection(t, &cfg.Resolve); err != nil {
		return buildconfig.Config{}, err
	}
	c.outputSection(t, &cfg.Output)
	c.optimization(t, &cfg.Optimization, partition)
	cfg.Plugins = c.plugins(t, base.Plugins, stamp, cfg.Output.Path)

	if t.IsClient() && c.opts.ModuleEntryPoints {
		cfg.Performance = &buildconfig.Performance{
			MaxEntrypointSize: performanceMaxEntrypoint,
			MaxAssetSize:      performanceMaxAsset,
		}
	}

	if t.IsServer() {
		c.versionOnce.Do(func() {
			logger.Info().
				Str("sdk", stamp.SDK).
				Str("module_library", stamp.ModuleLibrary).
				Str("proxy_client", stamp.ProxyClient).
				Msg("version information")
		})
	}

	fingerprint, err := buildconfig.Fingerprint(cfg)
	if err != nil {
		return buildconfig.Config{}, err
	}
	logger.Info().
		Str("fingerprint", fingerprint).
		Strs("entries", cfg.Entry.Names()).
		Int("derived_groups", partition.DerivedGroups).
		Msg("composed build config")

	return cfg, nil
}

func (c *Composer) resolveSection(t target.Target, r *buildconfig.Resolve) error {
	layout := c.opts.Layout
	nodeModules := c.NodeModules()

	for _, ext := range scriptExtensions {
		if !slices.Contains(r.Extensions, ext) {
			r.Extensions = append(r.Extensions, ext)
		}
	}

	aliases := map[string]string{
		"partner":        layout.AppSrc(),
		"build":          filepath.Join(layout.AppPath, "build"),
		"lib":            filepath.Join(layout.AppPath, discovery.LibDir),
		"tmp":            filepath.Join(layout.AppPath, ".tmp"),
		"node_modules":   nodeModules[0],
		"starterPackSrc": filepath.Join(nodeModules[0], filepath.FromSlash(versions.ModuleLibrary.String())),
	}
	for _, pkg := range []struct{ alias, dir string }{{"core-js", "core-js"}, {"path", "path-browserify"}} {
		dir, err := fsprobe.FirstExisting(c.opts.Exists, filepath.Join(nodeModules[0], pkg.dir), filepath.Join(nodeModules[1], pkg.dir))
		if err == nil {
			aliases[pkg.alias] = dir
		}
	}

	local, hoisted := layout.BootloaderCandidates()[1], layout.BootloaderCandidates()[0]
	if !c.opts.Exists(local) && c.opts.Exists(hoisted) {
		aliases["hoisted"] = nodeModules[1]
	}

	if r.Alias == nil {
		r.Alias = map[string]string{}
	}
	if err := mergo.Merge(&r.Alias, aliases, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge aliases: %w", err)
	}

	if t.IsClient() {
		// node builtins have no browser counterpart
		r.Fallback = map[string]bool{"util": false, "fs": false, "stream": false}
	}
	return nil
}

func (c *Composer) outputSection(t target.Target, o *buildconfig.Output) {
	o.SourceMapFilename = "[file].map"
	o.DevtoolModuleFilenameTemplate = "webpack://[namespace]/[resource-path]?[hash]"

	if !t.IsClient() {
		return
	}
	if !t.Dev() {
		o.ChunkFilename = "static/js/[id].[contenthash].chunk.js"
	}
	o.PublicPath = "/"
}

func (c *Composer) optimization(t target.Target, o *buildconfig.Optimization, p chunks.Partition) {
	if !t.IsClient() {
		o.SplitChunks = chunks.SplitChunks{}
		return
	}

	o.RuntimeChunk = "bootstrap"
	if c.opts.ModuleEntryPoints {
		o.RuntimeChunk = buildconfig.SingleRuntimeChunk
	}
	o.ChunkIDs = "total-size"
	o.ModuleIDs = "size"
	o.FlagIncludedChunks = true
	o.ConcatenateModules = true
	o.SplitChunks = p.SplitChunks
}
