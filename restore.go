package devmirror

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/seafork/devmirror/internal/devpath"
	"github.com/seafork/devmirror/internal/output"
)

// LatestRoot is a RootChooser that always restores from the most recent
// session root containing the path.
func LatestRoot(_ string, roots []string) string {
	return roots[len(roots)-1]
}

func (d *devmirror) Restore(paths []string, choose RootChooser) error {
	if choose == nil {
		choose = LatestRoot
	}
	if err := d.transport.Probe(); err != nil {
		return newCommandError("device not ready", err)
	}

	pushed, skipped := 0, 0
	for _, raw := range paths {
		rel := devpath.Normalize(raw)
		roots := d.idx.RootsContaining(rel)
		if len(roots) == 0 {
			d.warn("not on record, skipped: %s", rel)
			skipped++
			continue
		}
		rootID := choose(rel, roots)
		if rootID == "" {
			fmt.Fprintf(d.extraOut, "Skipped by choice: %s\n", rel)
			skipped++
			continue
		}
		if err := d.pushOne(rel, rootID); err != nil {
			return err
		}
		pushed++
	}

	fmt.Fprintf(d.out, "%d %s restored, %d skipped\n", pushed, output.Plural(pushed, "path", "paths"), skipped)
	return nil
}

func (d *devmirror) pushOne(rel string, rootID string) error {
	localPath, err := devpath.ToLocal(rel, d.sessionDir(rootID))
	if err != nil {
		return newCommandError(fmt.Sprintf("restore of %s impossible", rel), err)
	}
	if _, statErr := os.Stat(localPath); statErr != nil {
		return newCommandError(fmt.Sprintf("local copy of %s missing in root %s", rel, rootID), statErr)
	}

	remotePath := path.Join(d.deviceRoot, rel)
	for _, dir := range properPrefixDirs(remotePath) {
		if err := d.transport.MakeRemoteDir(dir); err != nil {
			return newCommandError(fmt.Sprintf("preparing remote directory for %s failed", rel), err)
		}
	}
	if err := d.transport.PushFile(localPath, remotePath); err != nil {
		return newCommandError(fmt.Sprintf("push of %s failed", rel), err)
	}
	fmt.Fprintf(d.extraOut, "Restored %s (from %s)\n", rel, rootID)
	return nil
}

func (d *devmirror) sessionDir(rootID string) string {
	return filepath.Join(d.userDir, rootID)
}

// properPrefixDirs yields every proper prefix directory of an absolute device
// path, outermost first, e.g. "/sdcard/a/b/f.txt" yields "/sdcard", then
// "/sdcard/a", then "/sdcard/a/b".
func properPrefixDirs(remotePath string) []string {
	var dirs []string
	for dir := path.Dir(remotePath); dir != "/" && dir != "."; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
	}
	// reverse into outermost-first creation order
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}
