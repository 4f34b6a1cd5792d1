package bundler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/externals"
)

const (
	entryNamespace    = "keystone-entry"
	externalNamespace = "keystone-external"
	devTransport      = "webpack-dev-server/"
)

// entryModule imports every path of a multi-file entry in order. The dev
// transport client belongs to the dev server and is not bundled here.
func entryModule(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		if strings.HasPrefix(p, devTransport) {
			log.Debug().Str("path", p).Msg("Skipping dev transport entry")
			continue
		}
		fmt.Fprintf(&b, "import %s;\n", strconv.Quote(p))
	}
	return b.String()
}

// entryPlugin serves one virtual module per entry so ordered entry lists
// behave like a single entry point.
func entryPlugin(entryMap entries.EntryMap, resolveDir string) api.Plugin {
	return api.Plugin{
		Name: "keystone-entries",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					paths, ok := entryMap[args.Path]
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("unknown entry %q", args.Path)
					}
					contents := entryModule(paths)
					return api.OnLoadResult{Contents: &contents, ResolveDir: resolveDir, Loader: api.LoaderJS}, nil
				})
		},
	}
}

// externalsPlugin keeps externals out of the bundle. Globals resolve to the
// host-supplied binding, empty externals to an empty object and everything
// else stays an import of the runtime module system.
func externalsPlugin(m externals.Map) api.Plugin {
	keys := m.Keys()
	quoted := make([]string, len(keys))
	for i, key := range keys {
		quoted[i] = regexp.QuoteMeta(key)
	}

	return api.Plugin{
		Name: "keystone-externals",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^(" + strings.Join(quoted, "|") + ")$"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					strategy := m[args.Path]
					switch strategy.Kind {
					case externals.Global, externals.Empty:
						return api.OnResolveResult{Path: args.Path, Namespace: externalNamespace}, nil
					default:
						return api.OnResolveResult{Path: strategy.Value, External: true}, nil
					}
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: externalNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := "module.exports = {};"
					if strategy := m[args.Path]; strategy.Kind == externals.Global {
						contents = fmt.Sprintf("module.exports = globalThis[%s];", strconv.Quote(strategy.Value))
					}
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})
		},
	}
}

// nullPlugin empties every file matched by a null-loader rule.
func nullPlugin(rules []buildconfig.Rule) (api.Plugin, bool) {
	var filters []string
	for _, rule := range rules {
		if rule.Loader == buildconfig.NullLoader && rule.Test != "" {
			filters = append(filters, rule.Test)
		}
	}
	if len(filters) == 0 {
		return api.Plugin{}, false
	}

	return api.Plugin{
		Name: "keystone-null-loader",
		Setup: func(build api.PluginBuild) {
			for _, filter := range filters {
				build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						contents := ""
						return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
					})
			}
		},
	}, true
}
