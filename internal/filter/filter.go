// Package filter applies folder exclusion rules to the top-level folder
// selection of a backup session. Matching is plain case-sensitive substring
// containment, not glob or regex, and applies to top-level names only.
package filter

import (
	"strings"

	"github.com/seafork/devmirror/internal/store"
)

type document struct {
	ExcludedFolders []string `json:"excludedFolders"`
}

type Set struct {
	excluded []string
}

// New builds a filter set from the given substrings, deduplicated with order
// preserved.
func New(excluded []string) Set {
	seen := make(map[string]struct{})
	var unique []string
	for _, token := range excluded {
		if token == "" {
			continue
		}
		if _, duplicate := seen[token]; duplicate {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	return Set{excluded: unique}
}

// Load reads the filter configuration document. A missing document means no
// exclusions; a corrupt one also means no exclusions plus the corruption as a
// non-fatal warning.
func Load(path string) (set Set, warning error) {
	var doc document
	_, err := store.Load(path, &doc)
	if err != nil {
		return Set{}, err
	}
	return New(doc.ExcludedFolders), nil
}

// Allow reports whether a top-level folder name passes the filter, i.e.
// contains none of the excluded substrings.
func (s Set) Allow(name string) bool {
	for _, token := range s.excluded {
		if strings.Contains(name, token) {
			return false
		}
	}
	return true
}

// Apply returns only the names that pass Allow, preserving input order.
func (s Set) Apply(names []string) []string {
	allowed := make([]string, 0, len(names))
	for _, name := range names {
		if s.Allow(name) {
			allowed = append(allowed, name)
		}
	}
	return allowed
}

// Excluded returns the configured substrings.
func (s Set) Excluded() []string {
	return append([]string(nil), s.excluded...)
}
