// Package bundler runs composed configurations on esbuild and records what
// was produced.
package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/chunks"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/target"
)

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNoEntries indicates the configuration has no entry points
	ErrNoEntries = errors.New("no entry points configured")
)

// Engine builds configurations. It holds no per-target state, so one engine
// may build several targets concurrently.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// BuildOptions translates a composed configuration into esbuild options.
func BuildOptions(cfg buildconfig.Config) (api.BuildOptions, error) {
	if len(cfg.Entry) == 0 {
		return api.BuildOptions{}, ErrNoEntries
	}

	workDir := cfg.Context
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return api.BuildOptions{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return api.BuildOptions{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	// entry names double as output names so scoped package ids are flattened
	virtual := make(entries.EntryMap, len(cfg.Entry))
	var entryPoints []string
	for _, name := range cfg.Entry.Names() {
		key := chunks.ChunkName(name)
		virtual[key] = cfg.Entry[name]
		entryPoints = append(entryPoints, entryNamespace+":"+key)
	}

	plugins := []api.Plugin{entryPlugin(virtual, workDir)}
	if len(cfg.Externals) > 0 {
		plugins = append(plugins, externalsPlugin(cfg.Externals))
	}
	if p, ok := nullPlugin(cfg.Module.Rules); ok {
		plugins = append(plugins, p)
	}

	prod := cfg.Mode == string(target.Production)

	opts := api.BuildOptions{
		AbsWorkingDir:     workDir,
		EntryPoints:       entryPoints,
		Bundle:            true,
		Write:             true,
		Metafile:          true,
		Outdir:            cfg.Output.Path,
		EntryNames:        namePattern(cfg.Output.Filename, "[name]"),
		ChunkNames:        namePattern(cfg.Output.ChunkFilename, "chunk-[hash]"),
		PublicPath:        cfg.Output.PublicPath,
		ResolveExtensions: cfg.Resolve.Extensions,
		Alias:             cfg.Resolve.Alias,
		Define:            cfg.Defines(),
		JSX:               api.JSXAutomatic,
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  prod,
		MinifyIdentifiers: prod,
		MinifySyntax:      prod,
		Sourcemap:         cond(cfg.Output.SourceMapFilename != "", api.SourceMapLinked, api.SourceMapNone),
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
	}

	if cfg.Target == target.NodePlatform {
		opts.Platform = api.PlatformNode
		opts.Format = api.FormatCommonJS
	} else {
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatESModule
		opts.Splitting = cfg.Optimization.SplitChunks.Enabled
	}

	return opts, nil
}

// Build runs esbuild for cfg, writes the stats file and, when the analyzer
// plugin is configured, an analysis report.
func (e *Engine) Build(ctx context.Context, cfg buildconfig.Config) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Str("target", cfg.Name).Strs("entrypoints", cfg.Entry.Names()).Msg("Building bundle")

	result := api.Build(opts)

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("target", cfg.Name).Str("error", msg.Text).Msg("Build error")
		}
		return nil, fmt.Errorf("%w: %d errors", ErrBuildFailed, len(result.Errors))
	}

	for _, msg := range result.Warnings {
		log.Warn().Str("target", cfg.Name).Str("warning", msg.Text).Msg("Build warning")
	}

	var metafile Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &metafile); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	stats, err := newStats(cfg, opts.AbsWorkingDir, &metafile, result)
	if err != nil {
		return nil, err
	}

	for _, out := range stats.Outputs {
		log.Info().Str("file", out.Path).Int("bytes", out.Bytes).Msg("Built file")
	}

	if err := writeStats(cfg, stats); err != nil {
		return nil, err
	}
	if err := writeReport(cfg, result.Metafile); err != nil {
		return nil, err
	}

	return stats, nil
}

// loadScripts returns the ordered scripts needed to run each entry point, the
// entry output first, as served below the public path.
func loadScripts(cfg buildconfig.Config, workDir string, metafile *Metafile) (map[string][]string, error) {
	scripts := make(map[string][]string)
	for _, outputPath := range slices.Sorted(maps.Keys(metafile.Outputs)) {
		info := metafile.Outputs[outputPath]
		if !strings.HasPrefix(info.EntryPoint, entryNamespace+":") {
			continue
		}

		paths := []string{outputPath}
		visited := map[string]bool{outputPath: true}
		addDependencies(metafile, info, &paths, visited)

		urls := make([]string, 0, len(paths))
		for _, p := range paths {
			rel, err := filepath.Rel(cfg.Output.Path, filepath.Join(workDir, p))
			if err != nil {
				return nil, fmt.Errorf("failed to locate output %s: %w", p, err)
			}
			urls = append(urls, cfg.Output.PublicPath+filepath.ToSlash(rel))
		}
		scripts[strings.TrimPrefix(info.EntryPoint, entryNamespace+":")] = urls
	}
	return scripts, nil
}

func addDependencies(metafile *Metafile, output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := metafile.Outputs[imp.Path]; exists {
			addDependencies(metafile, chunkInfo, scripts, visited)
		}
	}
}

func newStats(cfg buildconfig.Config, workDir string, metafile *Metafile, result api.BuildResult) (*Stats, error) {
	fingerprint, err := buildconfig.Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]uint64, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		sums[file.Path] = checksum(file.Contents)
	}

	stats := &Stats{Target: cfg.Name, Fingerprint: fingerprint, Outputs: []OutputStat{}}

	for _, outputPath := range slices.Sorted(maps.Keys(metafile.Outputs)) {
		info := metafile.Outputs[outputPath]
		abs := filepath.Join(workDir, outputPath)

		sum, ok := sums[abs]
		if !ok {
			data, err := os.ReadFile(abs)
			if err != nil {
				return nil, fmt.Errorf("failed to read output %s: %w", abs, err)
			}
			sum = checksum(data)
		}

		stats.Outputs = append(stats.Outputs, OutputStat{
			Path:       outputPath,
			Bytes:      info.Bytes,
			Checksum:   strconv.FormatUint(sum, 16),
			EntryPoint: strings.TrimPrefix(info.EntryPoint, entryNamespace+":"),
		})
	}

	stats.Scripts, err = loadScripts(cfg, workDir, metafile)
	if err != nil {
		return nil, err
	}

	split := cfg.Optimization.SplitChunks
	if split.Enabled {
		stats.CacheGroups = make(map[string][]string)
		for _, input := range slices.Sorted(maps.Keys(metafile.Inputs)) {
			// virtual modules live in their own namespace
			if strings.Contains(input, ":") {
				continue
			}
			group := split.CacheGroups.Assign(filepath.Join(workDir, input))
			stats.CacheGroups[group] = append(stats.CacheGroups[group], input)
		}
	}

	for _, msg := range result.Warnings {
		stats.Warnings = append(stats.Warnings, msg.Text)
	}

	return stats, nil
}

// checksum computes the CRC64-NVME checksum of an output file.
func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

func writeStats(cfg buildconfig.Config, stats *Stats) error {
	name := buildconfig.StatsFile(cfg.Name)
	if p, ok := cfg.Plugin(buildconfig.StatsPlugin); ok {
		if filename, ok := p.Options["filename"].(string); ok && filename != "" {
			name = filename
		}
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	if err := os.MkdirAll(cfg.Output.Path, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(filepath.Join(cfg.Output.Path, name), data, 0600)
}

func writeReport(cfg buildconfig.Config, metafile string) error {
	p, ok := cfg.Plugin(buildconfig.BundleAnalyzerPlugin)
	if !ok {
		return nil
	}

	name := buildconfig.AnalysisReportFile(cfg.Name)
	if filename, ok := p.Options["reportFilename"].(string); ok && filename != "" {
		name = filename
	}

	report := api.AnalyzeMetafile(metafile, api.AnalyzeMetafileOptions{Verbose: true})
	page := "<!doctype html>\n<title>" + html.EscapeString(cfg.Name) + " bundle analysis</title>\n<pre>" +
		html.EscapeString(report) + "</pre>\n"

	log.Info().Str("target", cfg.Name).Str("report", name).Msg("Writing bundle analysis")

	return os.WriteFile(filepath.Join(cfg.Output.Path, name), []byte(page), 0600)
}

// namePattern converts an output filename template to an esbuild name
// pattern. esbuild adds the extension itself and only knows [name] and
// [hash].
func namePattern(filename, fallback string) string {
	if filename == "" {
		return fallback
	}
	pattern := strings.NewReplacer("[contenthash]", "[hash]", "[id]", "[name]").Replace(filename)
	pattern = strings.TrimSuffix(pattern, ".js")
	if !strings.Contains(pattern, "[name]") && !strings.Contains(pattern, "[hash]") {
		return fallback
	}
	return pattern
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
