package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seafork/devmirror/internal/store"
)

func TestRecordAndContains(t *testing.T) {
	led, warning := Open(filepath.Join(t.TempDir(), "backup_record.json"))
	if warning != nil {
		t.Fatal("fresh ledger must not warn:", warning)
	}

	if led.Contains("Download/a.txt") {
		t.Error("empty ledger claims membership")
	}
	if !led.RecordSuccess("Download/a.txt") {
		t.Error("first record not reported as new")
	}
	if led.RecordSuccess("Download/a.txt") {
		t.Error("repeated record reported as new")
	}
	if led.RecordSuccess("./Download/a.txt") {
		t.Error("normalization-equal record reported as new")
	}
	if !led.Contains("Download/a.txt") || !led.Contains("./Download/a.txt/") {
		t.Error("membership lost after record")
	}
	if led.Len() != 1 {
		t.Error("unexpected ledger size:", led.Len())
	}
}

func TestFlushRoundtrip(t *testing.T) {
	recordPath := filepath.Join(t.TempDir(), "backup_record.json")

	led, _ := Open(recordPath)
	led.RecordSuccess("Pictures/b.jpg")
	led.RecordSuccess("Download/a.txt")
	if err := led.Flush(); err != nil {
		t.Fatal(err)
	}

	reloaded, warning := Open(recordPath)
	if warning != nil {
		t.Fatal(warning)
	}
	paths := reloaded.Paths()
	if len(paths) != 2 || paths[0] != "Download/a.txt" || paths[1] != "Pictures/b.jpg" {
		t.Error("reloaded ledger differs:", paths)
	}
}

func TestFlushRetainsStateOnFailure(t *testing.T) {
	blockedDir := filepath.Join(t.TempDir(), "blocked")
	if err := os.MkdirAll(blockedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	recordPath := filepath.Join(blockedDir, "backup_record.json")

	led, _ := Open(recordPath)
	led.RecordSuccess("Notes/n.txt")

	if err := os.Chmod(blockedDir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(blockedDir, 0o755)

	if err := led.Flush(); err == nil {
		t.Skip("running with privileges that ignore directory permissions")
	}
	if !led.Contains("Notes/n.txt") {
		t.Fatal("in-memory state lost after failed flush")
	}

	os.Chmod(blockedDir, 0o755)
	if err := led.Flush(); err != nil {
		t.Fatal("retried flush failed:", err)
	}
	reloaded, _ := Open(recordPath)
	if !reloaded.Contains("Notes/n.txt") {
		t.Error("retried flush did not persist entry")
	}
}

func TestCorruptDocumentFallsBackToEmpty(t *testing.T) {
	recordPath := filepath.Join(t.TempDir(), "backup_record.json")
	os.WriteFile(recordPath, []byte("{not json"), 0o644)

	led, warning := Open(recordPath)
	var corrupt *store.CorruptError
	if !errors.As(warning, &corrupt) {
		t.Fatal("expected corruption warning, got", warning)
	}
	if led == nil || led.Len() != 0 {
		t.Fatal("corrupt document must yield a usable empty ledger")
	}
	// the damaged record must not block new backups
	led.RecordSuccess("Download/a.txt")
	if err := led.Flush(); err != nil {
		t.Error("flush over corrupt document failed:", err)
	}
}
