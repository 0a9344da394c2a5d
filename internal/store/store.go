// Package store persists structured documents with all-or-nothing replacement
// semantics. The document itself is opaque to this layer: anything the JSON
// encoder accepts can be stored.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const workInProgressFilePattern = ".tmp_*.json"

// seam for simulating crash-like rename failures in tests
var renameFile = os.Rename

// CorruptError reports a document that exists on disk but cannot be decoded.
// It is warning-class: callers are expected to fall back to a default
// document so that a corrupted record never blocks new work.
type CorruptError struct {
	Path  string
	cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("document corrupted (%s): %s", e.Path, e.cause)
}

func (e *CorruptError) Unwrap() error {
	return e.cause
}

// Load reads the document at the given path into doc. A missing file is not
// an error: found is false and doc is left untouched so the caller's default
// applies. Undecodable content yields a *CorruptError.
func Load(path string, doc interface{}) (found bool, err error) {
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading document failed: %w", readErr)
	}
	if unmarshalErr := json.Unmarshal(content, doc); unmarshalErr != nil {
		return false, &CorruptError{Path: path, cause: unmarshalErr}
	}
	return true, nil
}

// Save replaces the document at the given path atomically with respect to
// crashes: the full serialization is written to a temporary file in the same
// directory, synced to durable storage, and then renamed over the target in a
// single step. If any step before the rename fails the previous document
// remains byte-for-byte untouched and the temporary file is removed. Readers
// never observe a partially written document.
func Save(path string, doc interface{}) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("saving document (%s) failed: %w", path, err)
		}
	}()

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, 0o755); mkdirErr != nil {
		return mkdirErr
	}

	temp, err := os.CreateTemp(dir, workInProgressFilePattern)
	if err != nil {
		return err
	}
	tempPath := temp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tempPath)
		}
	}()

	encoder := json.NewEncoder(temp)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(doc); encodeErr != nil {
		temp.Close()
		return encodeErr
	}
	if syncErr := temp.Sync(); syncErr != nil {
		temp.Close()
		return syncErr
	}
	if closeErr := temp.Close(); closeErr != nil {
		return closeErr
	}

	if renameErr := renameFile(tempPath, path); renameErr != nil {
		return renameErr
	}
	committed = true
	return nil
}
