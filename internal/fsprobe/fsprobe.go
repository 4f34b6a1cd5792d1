// Package fsprobe picks the first existing path out of an ordered list of
// candidates.
package fsprobe

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCandidate is returned when none of the candidate paths exist.
var ErrNoCandidate = errors.New("no candidate path exists")

// Exists reports whether a path exists.
type Exists func(path string) bool

// OS checks the local filesystem.
func OS(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FirstExisting returns the first candidate that exists, in priority order.
func FirstExisting(exists Exists, candidates ...string) (string, error) {
	if exists == nil {
		exists = OS
	}

	for _, candidate := range candidates {
		if exists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrNoCandidate, strings.Join(candidates, ", "))
}

// Set returns an Exists func backed by a fixed list of paths, used by tests
// and dry runs.
func Set(paths ...string) Exists {
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}
	return func(path string) bool {
		return known[path]
	}
}
