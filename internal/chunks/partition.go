package chunks

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/wolfeidau/keystone/internal/settings"
	"github.com/wolfeidau/keystone/internal/target"
)

// DefaultMinChunkSize is the chunk size floor in bytes used when the platform
// settings do not set one.
const DefaultMinChunkSize = 20000

// Baseline cache group keys.
const (
	VendorsGroup     = "defaultVendors"
	RetailProxyGroup = "retail-proxy"
	DOMPurifyGroup   = "msdyn365-dompurify-chunk"
	PerformanceGroup = "msdyn365-performance-chunk"
)

var (
	nodeModules       = regexp.MustCompile(`node_modules`)
	platformNamespace = regexp.MustCompile(`@msdyn365-commerce-(themes|modules)`)
	retailProxy       = regexp.MustCompile(`retail-proxy`)
	dompurify         = regexp.MustCompile(`dompurify`)
	chartJS           = regexp.MustCompile(`chart\.js`)
	perfAnalyzer      = regexp.MustCompile(`commerce-performance-analyzer`)
)

// RequestLimits is the concurrency policy for async and initial chunk
// requests. With per-module entry points a fixed cap applies; otherwise each
// derived cache group raises the limits above a base value.
type RequestLimits struct {
	EntryPointCap int
	AsyncBase     int
	InitialBase   int
}

func DefaultRequestLimits() RequestLimits {
	return RequestLimits{EntryPointCap: 20, AsyncBase: 5, InitialBase: 3}
}

// For returns the async and initial request limits.
func (l RequestLimits) For(groups int, moduleEntryPoints bool) (async, initial int) {
	if moduleEntryPoints {
		return l.EntryPointCap, l.EntryPointCap
	}
	return groups + l.AsyncBase, groups + l.InitialBase
}

// SplitChunks is the code-splitting section of the bundler optimization
// config. A disabled value marshals to false.
type SplitChunks struct {
	Enabled                bool   `json:"-"`
	Chunks                 string `json:"chunks"`
	MinSize                int    `json:"minSize"`
	MaxSize                *int   `json:"maxSize,omitempty"`
	MinChunks              int    `json:"minChunks"`
	MaxAsyncRequests       int    `json:"maxAsyncRequests"`
	MaxInitialRequests     int    `json:"maxInitialRequests"`
	AutomaticNameDelimiter string `json:"automaticNameDelimiter"`
	HidePathInfo           bool   `json:"hidePathInfo"`
	CacheGroups            Rules  `json:"cacheGroups"`
}

func (s SplitChunks) MarshalJSON() ([]byte, error) {
	if !s.Enabled {
		return []byte("false"), nil
	}
	type plain SplitChunks
	return json.Marshal(plain(s))
}

// Options carries the inputs of one partitioning.
type Options struct {
	Settings settings.PlatformSettings
	// Packages are the discovered module packages, local package excluded.
	Packages          []string
	ModuleEntryPoints bool
	Limits            RequestLimits
}

// Partition is the result of partitioning for one target.
type Partition struct {
	SplitChunks SplitChunks
	// DerivedGroups counts the per-package cache groups.
	DerivedGroups int
	// Skipped lists packages whose id collides with a baseline cache group.
	Skipped []string
}

var baselineKeys = []string{VendorsGroup, RetailProxyGroup, DOMPurifyGroup, PerformanceGroup}

// IsBaselineKey reports whether id names one of the baseline cache groups.
func IsBaselineKey(id string) bool {
	return slices.Contains(baselineKeys, id)
}

// Build derives the split-chunks section. Server builds disable splitting to
// keep a single deployable output.
func Build(t target.Target, opts Options) Partition {
	if !t.IsClient() {
		return Partition{}
	}

	rules, derived := CacheGroups(t.Name, opts.Settings, opts.Packages)

	limits := opts.Limits
	if limits == (RequestLimits{}) {
		limits = DefaultRequestLimits()
	}
	async, initial := limits.For(derived, opts.ModuleEntryPoints)

	minSize := opts.Settings.MinClientChunkSize
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}

	var skipped []string
	if opts.Settings.EnableChunkByModulePackage {
		skipped = slices.DeleteFunc(slices.Clone(opts.Packages), func(pkg string) bool { return !IsBaselineKey(pkg) })
	}

	return Partition{
		DerivedGroups: derived,
		Skipped:       skipped,
		SplitChunks: SplitChunks{
			Enabled:                true,
			Chunks:                 "all",
			MinSize:                minSize,
			MaxSize:                opts.Settings.MaxClientChunkSize,
			MinChunks:              1,
			MaxAsyncRequests:       async,
			MaxInitialRequests:     initial,
			AutomaticNameDelimiter: "~",
			HidePathInfo:           true,
			CacheGroups:            rules,
		},
	}
}

// CacheGroups returns the ordered cache-group rules for a target and the
// number of per-package groups derived from packages. Packages must already be
// de-duplicated and sorted. A package named like a baseline group gets no
// group of its own.
func CacheGroups(name target.Name, s settings.PlatformSettings, packages []string) (Rules, int) {
	if name != target.Client {
		return nil, 0
	}

	var derived Rules
	if s.EnableChunkByModulePackage {
		for _, pkg := range packages {
			if IsBaselineKey(pkg) {
				continue
			}
			derived = append(derived, Rule{
				Key:      pkg,
				Name:     ChunkName(pkg),
				Priority: ExplicitPriority,
				Test:     Predicate{AllOf: []*regexp.Regexp{PackagePattern(pkg)}},
			})
		}
	}

	vendorsExcluded := []*regexp.Regexp{platformNamespace, retailProxy, dompurify, chartJS, perfAnalyzer}
	for _, rule := range derived {
		vendorsExcluded = append(vendorsExcluded, rule.Test.AllOf...)
	}

	rules := Rules{
		{
			Key:      VendorsGroup,
			Name:     "vendors",
			Priority: ExplicitPriority,
			Test: Predicate{
				AllOf:  []*regexp.Regexp{nodeModules},
				NoneOf: vendorsExcluded,
			},
		},
		{
			Key:      RetailProxyGroup,
			Name:     "retail-proxy",
			Priority: ExplicitPriority,
			Test: Predicate{
				AllOf:  []*regexp.Regexp{retailProxy},
				NoneOf: []*regexp.Regexp{platformNamespace, dompurify, chartJS, perfAnalyzer},
			},
		},
	}
	rules = append(rules, derived...)
	rules = append(rules,
		Rule{
			Key:      DOMPurifyGroup,
			Name:     DOMPurifyGroup,
			Priority: ExplicitPriority,
			Test:     Predicate{AllOf: []*regexp.Regexp{nodeModules, dompurify}},
		},
		Rule{
			Key:      PerformanceGroup,
			Name:     PerformanceGroup,
			Priority: ExplicitPriority,
			Test: Predicate{
				AllOf: []*regexp.Regexp{nodeModules},
				AnyOf: []*regexp.Regexp{perfAnalyzer, chartJS},
			},
		},
	)

	return rules, len(derived)
}

// PackagePattern matches any path inside a package folder, in node_modules or
// lib, with either path separator.
func PackagePattern(pkg string) *regexp.Regexp {
	parts := strings.Split(pkg, "/")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile(`[\\/]` + strings.Join(parts, `[\\/]`) + `[\\/]`)
}

// ChunkName turns a package id into an output chunk name.
func ChunkName(pkg string) string {
	return strings.ReplaceAll(strings.TrimPrefix(pkg, "@"), "/", "-")
}
