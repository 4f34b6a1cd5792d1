// Package versions resolves the installed versions of the platform packages
// that are stamped into the bundle.
package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
)

// Placeholder is stamped when an optional version cannot be resolved.
const Placeholder = "--"

var (
	// ErrPackageNotFound indicates no package.json was found for the package
	ErrPackageNotFound = errors.New("package not found")
	// ErrInvalidVersion indicates the package.json version is not valid semver
	ErrInvalidVersion = errors.New("invalid package version")
	// ErrVersionRequired indicates a mandatory version could not be resolved
	ErrVersionRequired = errors.New("required package version could not be resolved")
)

// Package identifies an npm package by scope and name.
type Package struct {
	Scope string
	Name  string
}

func (p Package) String() string {
	if p.Scope == "" {
		return p.Name
	}
	return p.Scope + "/" + p.Name
}

var (
	// SDK is the platform bootloader package.
	SDK = Package{Scope: "@msdyn365-commerce", Name: "bootloader"}
	// ModuleLibrary is the starter pack of content modules.
	ModuleLibrary = Package{Scope: "@msdyn365-commerce-modules", Name: "starter-pack"}
	// ProxyClient is the commerce API proxy client.
	ProxyClient = Package{Scope: "@msdyn365-commerce", Name: "retail-proxy"}
)

// Stamp holds the versions stamped into compile-time constants.
type Stamp struct {
	SDK           string
	ModuleLibrary string
	ProxyClient   string
	RCSU          string
}

// Resolver looks packages up in a list of node_modules directories, first
// match wins.
type Resolver struct {
	NodeModules []string
}

func NewResolver(nodeModules ...string) *Resolver {
	return &Resolver{NodeModules: nodeModules}
}

// Version returns the version recorded in the package's package.json.
func (r *Resolver) Version(pkg Package) (string, error) {
	for _, dir := range r.NodeModules {
		path := filepath.Join(dir, filepath.FromSlash(pkg.String()), "package.json")
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		var manifest struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &manifest); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}

		version := strings.TrimPrefix(strings.TrimSpace(manifest.Version), "v")
		if !semver.IsValid("v" + version) {
			return "", fmt.Errorf("%w: %s@%q", ErrInvalidVersion, pkg, manifest.Version)
		}
		return version, nil
	}

	return "", fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
}

// Resolve stamps all versions. The proxy client version is mandatory; the SDK
// and module library fall back to Placeholder with a warning.
func (r *Resolver) Resolve(ctx context.Context) (Stamp, error) {
	logger := zerolog.Ctx(ctx)

	proxy, err := r.Version(ProxyClient)
	if err != nil {
		return Stamp{}, fmt.Errorf("%w: %w", ErrVersionRequired, err)
	}

	stamp := Stamp{
		SDK:           r.optional(logger, SDK),
		ModuleLibrary: r.optional(logger, ModuleLibrary),
		ProxyClient:   proxy,
		RCSU:          Placeholder,
	}
	return stamp, nil
}

func (r *Resolver) optional(logger *zerolog.Logger, pkg Package) string {
	version, err := r.Version(pkg)
	if err != nil {
		logger.Warn().Err(err).Str("package", pkg.String()).Msg("version not resolved, using placeholder")
		return Placeholder
	}
	return version
}
