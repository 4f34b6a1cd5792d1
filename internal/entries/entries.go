// Package entries resolves the entry-point map handed to the bundler.
package entries

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/wolfeidau/keystone/internal/discovery"
	"github.com/wolfeidau/keystone/internal/fsprobe"
	"github.com/wolfeidau/keystone/internal/target"
)

// ErrBootstrapMissing is fatal: without the bootstrap client no usable client
// bundle can be produced.
var ErrBootstrapMissing = errors.New("bootstrap client entry not found")

const (
	// ClientEntry is the name of the synthesized client entry.
	ClientEntry = "client"
	// ServerEntry is the default server entry name.
	ServerEntry = "server"

	publicPathShim       = "webpack-public-path.js"
	aggregateClient      = "client.js"
	moduleEntrypoints    = "module-entrypoints-client.js"
	devTransportTemplate = "webpack-dev-server/client?%s"
)

// EntryMap maps an entry name to an ordered list of module paths. Order
// matters: runtime shims precede application code.
type EntryMap map[string][]string

// Names returns the entry names in sorted order.
func (m EntryMap) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

func (m EntryMap) Clone() EntryMap {
	if m == nil {
		return nil
	}
	out := make(EntryMap, len(m))
	for name, paths := range m {
		out[name] = slices.Clone(paths)
	}
	return out
}

// Layout describes where a storefront project keeps its sources and where the
// fixed entry directory lives.
type Layout struct {
	AppPath  string
	EntryDir string
}

func (l Layout) AppSrc() string { return filepath.Join(l.AppPath, "src") }

// PublicPathShim sets the bundler public path at runtime and must precede
// every other client module.
func (l Layout) PublicPathShim() string { return filepath.Join(l.EntryDir, publicPathShim) }

// BootloaderCandidates returns the hoisted then local bootloader install
// directories.
func (l Layout) BootloaderCandidates() []string {
	return []string{
		filepath.Join(l.AppPath, "..", "..", "node_modules", "@msdyn365-commerce", "bootloader"),
		filepath.Join(l.AppPath, "node_modules", "@msdyn365-commerce", "bootloader"),
	}
}

func (l Layout) bootloaderEntry(file string) []string {
	var out []string
	for _, dir := range l.BootloaderCandidates() {
		out = append(out, filepath.Join(dir, "entry", file))
	}
	return out
}

// Registration returns the absolute registration entry point of a package.
func (l Layout) Registration(id string) string {
	return filepath.Join(l.AppPath, filepath.FromSlash(discovery.RegistrationPath(id)))
}

// Request carries the inputs of one entry resolution.
type Request struct {
	Target            target.Target
	Discovered        discovery.Set
	Excluded          map[string]struct{}
	ModuleEntryPoints bool
	// Base is the entry map of the base configuration.
	Base EntryMap
}

type Resolver struct {
	Layout Layout
	Exists fsprobe.Exists
	// DevServerURL is the dev transport address injected ahead of the client
	// shim in development builds, e.g. http://localhost:3001/.
	DevServerURL string
}

// Resolve produces a fresh entry map for the request.
func (r *Resolver) Resolve(req Request) (EntryMap, error) {
	if req.Target.IsServer() {
		return r.server(req.Base), nil
	}

	if !req.ModuleEntryPoints {
		bootstrap, err := r.firstExisting(r.Layout.bootloaderEntry(aggregateClient))
		if err != nil {
			return nil, err
		}
		return EntryMap{ClientEntry: {r.Layout.PublicPathShim(), bootstrap}}, nil
	}

	bootstrap, err := r.firstExisting(r.Layout.bootloaderEntry(moduleEntrypoints))
	if err != nil {
		return nil, err
	}

	out := EntryMap{}
	for _, id := range req.Discovered.Sorted() {
		if _, skip := req.Excluded[id]; skip || id == "" {
			continue
		}
		out[id] = []string{r.Layout.Registration(id)}
	}

	var client []string
	if req.Target.Dev() && r.DevServerURL != "" {
		client = append(client, fmt.Sprintf(devTransportTemplate, r.DevServerURL))
	}
	client = append(client, r.Layout.PublicPathShim(), bootstrap)
	out[ClientEntry] = client

	return out, nil
}

// server rewrites entry paths from the application source tree to the fixed
// entry directory so served entry points do not depend on a consumer's
// source layout.
func (r *Resolver) server(base EntryMap) EntryMap {
	if len(base) == 0 {
		return EntryMap{ServerEntry: {filepath.Join(r.Layout.EntryDir, "server.js")}}
	}

	src := r.Layout.AppSrc()
	out := make(EntryMap, len(base))
	for name, paths := range base {
		rewritten := make([]string, 0, len(paths))
		for _, p := range paths {
			if p == src || strings.HasPrefix(p, src+string(filepath.Separator)) {
				p = r.Layout.EntryDir + strings.TrimPrefix(p, src)
			}
			rewritten = append(rewritten, p)
		}
		out[name] = rewritten
	}
	return out
}

func (r *Resolver) firstExisting(candidates []string) (string, error) {
	found, err := fsprobe.FirstExisting(r.Exists, candidates...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBootstrapMissing, err)
	}
	return found, nil
}
