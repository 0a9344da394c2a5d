// Package ledger tracks which device-relative paths have ever been copied
// successfully for one user scope. Membership means "do not re-copy"; the set
// never shrinks during a ledger's lifetime.
package ledger

import (
	"sort"

	"github.com/seafork/devmirror/internal/devpath"
	"github.com/seafork/devmirror/internal/store"
)

type document struct {
	IncludedFolders []string `json:"includedFolders"`
}

type Ledger struct {
	path     string
	included map[string]struct{}
	dirty    bool
}

// Open loads the ledger document at the given path. A missing document yields
// an empty ledger. A corrupt document also yields an empty ledger and returns
// the corruption as a non-fatal warning so that a damaged record never blocks
// new backups.
func Open(path string) (led *Ledger, warning error) {
	led = &Ledger{path: path, included: make(map[string]struct{})}
	var doc document
	_, err := store.Load(path, &doc)
	if err != nil {
		return led, err
	}
	for _, entry := range doc.IncludedFolders {
		if rel := devpath.Normalize(entry); rel != "" {
			led.included[rel] = struct{}{}
		}
	}
	return led, nil
}

// Contains reports whether the normalized path has been recorded as copied.
func (led *Ledger) Contains(rel string) bool {
	_, known := led.included[devpath.Normalize(rel)]
	return known
}

// RecordSuccess adds a path to the ledger. Recording an already-present path
// is a no-op; the return value reports whether the entry is new.
func (led *Ledger) RecordSuccess(rel string) (added bool) {
	normalized := devpath.Normalize(rel)
	if normalized == "" {
		return false
	}
	if _, known := led.included[normalized]; known {
		return false
	}
	led.included[normalized] = struct{}{}
	led.dirty = true
	return true
}

func (led *Ledger) Len() int {
	return len(led.included)
}

// Paths returns all recorded paths in sorted order.
func (led *Ledger) Paths() []string {
	paths := make([]string, 0, len(led.included))
	for rel := range led.included {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// Flush persists the current state via atomic replacement. On failure the
// in-memory state stays marked dirty so a later Flush can retry.
func (led *Ledger) Flush() error {
	if !led.dirty {
		return nil
	}
	if err := store.Save(led.path, document{IncludedFolders: led.Paths()}); err != nil {
		return err
	}
	led.dirty = false
	return nil
}
