// Package discovery finds the content-module packages installed in a
// storefront project.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// LocalPackage denotes modules authored directly in the current project.
	LocalPackage = "__local__"
	// LibDir holds one registration folder per module package.
	LibDir = "lib"
	// RegistrationFile is the module registration entry point of a package.
	RegistrationFile = "module-registration.js"
)

// DefaultConvention matches scoped content-module package names such as
// @msdyn365-commerce-modules/buybox or @contoso-partners/hero.
var DefaultConvention = regexp.MustCompile(`^@[a-z0-9][a-z0-9._-]*-(modules|partners)/[a-z0-9][a-z0-9._-]*$`)

// Set is a de-duplicated set of module package ids.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s Set) Add(id string) { s[id] = struct{}{} }

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order so that anything derived from the
// set is reproducible.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Packages returns the sorted ids excluding the local package.
func (s Set) Packages() []string {
	ids := s.Sorted()
	return slices.DeleteFunc(ids, func(id string) bool { return id == LocalPackage })
}

// RegistrationPath returns the project-relative registration entry point of a
// module package.
func RegistrationPath(id string) string {
	return path.Join(LibDir, id, RegistrationFile)
}

// Discoverer scans a project tree rooted at FS.
type Discoverer struct {
	FS         fs.FS
	Convention *regexp.Regexp
}

func New(fsys fs.FS) *Discoverer {
	return &Discoverer{FS: fsys, Convention: DefaultConvention}
}

// Discover returns the module packages to wire, minus the excluded ids and
// always including LocalPackage unless it is excluded itself. Packages whose
// registration entry point is missing are dropped with a warning.
func (d *Discoverer) Discover(ctx context.Context, excluded map[string]struct{}) (Set, error) {
	logger := zerolog.Ctx(ctx)

	candidates, err := d.candidates(logger)
	if err != nil {
		return nil, err
	}

	found := NewSet()
	for _, id := range candidates.Sorted() {
		if _, skip := excluded[id]; skip || id == LocalPackage {
			continue
		}

		registration := RegistrationPath(id)
		if _, err := fs.Stat(d.FS, registration); err != nil {
			logger.Warn().Err(err).Str("package", id).Str("path", registration).
				Msg("module registration not found, skipping package")
			continue
		}
		found.Add(id)
	}

	if _, skip := excluded[LocalPackage]; !skip {
		found.Add(LocalPackage)
	}

	logger.Debug().Strs("packages", found.Sorted()).Msg("discovered module packages")

	return found, nil
}

func (d *Discoverer) candidates(logger *zerolog.Logger) (Set, error) {
	set := NewSet()

	deps, err := d.dependencies()
	if err != nil {
		return nil, err
	}
	convention := d.Convention
	if convention == nil {
		convention = DefaultConvention
	}
	for _, name := range deps {
		if convention.MatchString(name) {
			set.Add(name)
		}
	}

	libs, err := d.libPackages(logger)
	if err != nil {
		return nil, err
	}
	for _, id := range libs {
		set.Add(id)
	}

	return set, nil
}

type packageJSON struct {
	Dependencies map[string]string `json:"dependencies"`
}

func (d *Discoverer) dependencies() ([]string, error) {
	data, err := fs.ReadFile(d.FS, "package.json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	names := make([]string, 0, len(pkg.Dependencies))
	for name := range pkg.Dependencies {
		names = append(names, name)
	}
	return names, nil
}

// libPackages lists lib/<id> and lib/@scope/<id> folders. An unreadable scope
// only loses the packages inside it.
func (d *Discoverer) libPackages(logger *zerolog.Logger) ([]string, error) {
	entries, err := fs.ReadDir(d.FS, LibDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", LibDir, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "@") {
			ids = append(ids, name)
			continue
		}

		scope := path.Join(LibDir, name)
		scoped, err := fs.ReadDir(d.FS, scope)
		if err != nil {
			logger.Warn().Err(err).Str("path", scope).Msg("failed to read module scope, skipping")
			continue
		}
		for _, pkg := range scoped {
			if pkg.IsDir() {
				ids = append(ids, name+"/"+pkg.Name())
			}
		}
	}
	return ids, nil
}
