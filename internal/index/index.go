// Package index maintains the per-user restore index: which backup session
// root captured which device-relative paths, plus the derived reverse lookup
// from a path to every root containing it.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seafork/devmirror/internal/devpath"
	"github.com/seafork/devmirror/internal/store"
)

type rootDocument struct {
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

type document struct {
	Roots map[string]rootDocument `json:"roots"`
}

type rootEntry struct {
	description string
	files       map[string]struct{}
}

// RootInfo is a read-only summary of one session root.
type RootInfo struct {
	ID          string
	Description string
	FileCount   int
}

type Index struct {
	path  string
	roots map[string]*rootEntry
	order []string            // root IDs in chronological (lexicographic) order
	rev   map[string][]string // path -> root IDs, same order as `order`
	dirty bool
}

// NormalizeRootID brings a root identifier into canonical form.
func NormalizeRootID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "/")
}

// Open loads the restore index document at the given path. Missing documents
// yield an empty index; corrupt ones yield an empty index plus the corruption
// as a non-fatal warning. The reverse mapping is rebuilt from the loaded
// roots, which is always correct by definition.
func Open(path string) (idx *Index, warning error) {
	idx = &Index{
		path:  path,
		roots: make(map[string]*rootEntry),
		rev:   make(map[string][]string),
	}
	var doc document
	_, err := store.Load(path, &doc)
	if err != nil {
		return idx, err
	}
	for id, raw := range doc.Roots {
		rootID := NormalizeRootID(id)
		if rootID == "" {
			continue
		}
		entry := &rootEntry{description: raw.Description, files: make(map[string]struct{})}
		if entry.description == "" {
			entry.description = rootID
		}
		for _, file := range raw.Files {
			if rel := devpath.Normalize(file); rel != "" {
				entry.files[rel] = struct{}{}
			}
		}
		idx.roots[rootID] = entry
		idx.order = append(idx.order, rootID)
	}
	sort.Strings(idx.order)
	idx.rebuildReverse()
	return idx, nil
}

// rebuildReverse derives the reverse mapping from scratch. Incremental
// maintenance in AddFileToRoot must always produce the same result.
func (idx *Index) rebuildReverse() {
	idx.rev = make(map[string][]string)
	for _, rootID := range idx.order {
		for rel := range idx.roots[rootID].files {
			idx.rev[rel] = append(idx.rev[rel], rootID)
		}
	}
}

// AddFileToRoot records that the given session root captured the given path.
// The root is created lazily with the given description. Adding an already
// recorded path is a no-op. The reverse mapping is updated incrementally,
// keeping root IDs in chronological order.
func (idx *Index) AddFileToRoot(rootID string, description string, rel string) {
	rootID = NormalizeRootID(rootID)
	rel = devpath.Normalize(rel)
	if rootID == "" || rel == "" {
		return
	}

	entry, exists := idx.roots[rootID]
	if !exists {
		if description == "" {
			description = rootID
		}
		entry = &rootEntry{description: description, files: make(map[string]struct{})}
		idx.roots[rootID] = entry
		idx.order = insertSorted(idx.order, rootID)
		idx.dirty = true
	}

	if _, present := entry.files[rel]; present {
		return
	}
	entry.files[rel] = struct{}{}
	idx.rev[rel] = insertSorted(idx.rev[rel], rootID)
	idx.dirty = true
}

func insertSorted(ids []string, id string) []string {
	position := sort.SearchStrings(ids, id)
	if position < len(ids) && ids[position] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[position+1:], ids[position:])
	ids[position] = id
	return ids
}

// HasRoot reports whether the given session root exists.
func (idx *Index) HasRoot(rootID string) bool {
	_, exists := idx.roots[NormalizeRootID(rootID)]
	return exists
}

// RootsContaining returns every root that captured the given path, in
// chronological order. The slice is a copy.
func (idx *Index) RootsContaining(rel string) []string {
	ids := idx.rev[devpath.Normalize(rel)]
	return append([]string(nil), ids...)
}

// Roots summarizes all session roots in chronological order.
func (idx *Index) Roots() []RootInfo {
	infos := make([]RootInfo, 0, len(idx.order))
	for _, rootID := range idx.order {
		entry := idx.roots[rootID]
		infos = append(infos, RootInfo{ID: rootID, Description: entry.description, FileCount: len(entry.files)})
	}
	return infos
}

// FilesForRoot returns the sorted paths captured by one root.
func (idx *Index) FilesForRoot(rootID string) []string {
	entry, exists := idx.roots[NormalizeRootID(rootID)]
	if !exists {
		return nil
	}
	files := make([]string, 0, len(entry.files))
	for rel := range entry.files {
		files = append(files, rel)
	}
	sort.Strings(files)
	return files
}

// CheckConsistency verifies the invariant between roots and the reverse
// mapping in both directions: every (root, path) membership has its mirror
// entry and neither side has orphans.
func (idx *Index) CheckConsistency() error {
	for _, rootID := range idx.order {
		for rel := range idx.roots[rootID].files {
			if !containsString(idx.rev[rel], rootID) {
				return fmt.Errorf("reverse mapping misses root %s for path %s", rootID, rel)
			}
		}
	}
	for rel, ids := range idx.rev {
		for _, rootID := range ids {
			entry, exists := idx.roots[rootID]
			if !exists {
				return fmt.Errorf("reverse mapping references unknown root %s", rootID)
			}
			if _, present := entry.files[rel]; !present {
				return fmt.Errorf("reverse mapping claims root %s contains %s but it does not", rootID, rel)
			}
		}
		if !sort.StringsAreSorted(ids) {
			return fmt.Errorf("reverse mapping for %s is not in chronological order: %v", rel, ids)
		}
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}

// Flush persists the current state via atomic replacement. On failure the
// in-memory state stays marked dirty so a later Flush can retry.
func (idx *Index) Flush() error {
	if !idx.dirty {
		return nil
	}
	doc := document{Roots: make(map[string]rootDocument, len(idx.roots))}
	for _, rootID := range idx.order {
		entry := idx.roots[rootID]
		doc.Roots[rootID] = rootDocument{Description: entry.description, Files: idx.FilesForRoot(rootID)}
	}
	if err := store.Save(idx.path, doc); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}
