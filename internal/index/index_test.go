package index

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/seafork/devmirror/internal/store"
)

func TestAddFileToRoot(t *testing.T) {
	idx, warning := Open(filepath.Join(t.TempDir(), "restore_record.json"))
	if warning != nil {
		t.Fatal("fresh index must not warn:", warning)
	}

	idx.AddFileToRoot("2025-09-09", "Backup on 2025-09-09", "Download/a.txt")
	idx.AddFileToRoot("2025-09-09", "", "Download/a.txt") // idempotent
	idx.AddFileToRoot("2025-09-09", "", "Pictures/b.jpg")

	if !idx.HasRoot("2025-09-09") {
		t.Fatal("root not created lazily")
	}
	files := idx.FilesForRoot("2025-09-09")
	if len(files) != 2 || files[0] != "Download/a.txt" || files[1] != "Pictures/b.jpg" {
		t.Error("unexpected files:", files)
	}
	roots := idx.Roots()
	if len(roots) != 1 || roots[0].Description != "Backup on 2025-09-09" || roots[0].FileCount != 2 {
		t.Errorf("unexpected root summary: %+v", roots)
	}
	if err := idx.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestRootsContainingChronologicalOrder(t *testing.T) {
	idx, _ := Open(filepath.Join(t.TempDir(), "restore_record.json"))

	// inserted out of chronological order on purpose
	idx.AddFileToRoot("2025-12-31", "", "Notes/n.txt")
	idx.AddFileToRoot("2023-08-15", "", "Notes/n.txt")
	idx.AddFileToRoot("2025-09-09", "", "Notes/n.txt")

	expected := []string{"2023-08-15", "2025-09-09", "2025-12-31"}
	if actual := idx.RootsContaining("Notes/n.txt"); !reflect.DeepEqual(actual, expected) {
		t.Error("expected chronological order", expected, "but got", actual)
	}
	if idx.RootsContaining("Notes/other.txt") != nil {
		t.Error("unknown path must yield no roots")
	}
}

func TestReverseIndexMatchesRebuildUnderRandomAdds(t *testing.T) {
	idx, _ := Open(filepath.Join(t.TempDir(), "restore_record.json"))

	rng := rand.New(rand.NewSource(42))
	rootIDs := []string{"2024-01-01", "2024-06-15", "2025-03-03", "2025-03-03.9XKW"}
	paths := make([]string, 20)
	for i := range paths {
		paths[i] = fmt.Sprintf("Folder%d/file%d.dat", i%4, i)
	}

	for i := 0; i < 500; i++ {
		idx.AddFileToRoot(rootIDs[rng.Intn(len(rootIDs))], "", paths[rng.Intn(len(paths))])
		if err := idx.CheckConsistency(); err != nil {
			t.Fatal("invariant violated after add", i, ":", err)
		}
	}

	incremental := make(map[string][]string)
	for _, rel := range paths {
		incremental[rel] = idx.RootsContaining(rel)
	}
	idx.rebuildReverse()
	for _, rel := range paths {
		if !reflect.DeepEqual(incremental[rel], idx.RootsContaining(rel)) {
			t.Error("incremental reverse mapping diverges from rebuild for", rel)
		}
	}
}

func TestFlushRoundtrip(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "restore_record.json")

	idx, _ := Open(indexPath)
	idx.AddFileToRoot("2025-09-09", "first", "Download/a.txt")
	idx.AddFileToRoot("2025-12-31", "second", "Download/a.txt")
	idx.AddFileToRoot("2025-12-31", "", "Music/song.mp3")
	if err := idx.Flush(); err != nil {
		t.Fatal(err)
	}

	reloaded, warning := Open(indexPath)
	if warning != nil {
		t.Fatal(warning)
	}
	if err := reloaded.CheckConsistency(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reloaded.RootsContaining("Download/a.txt"), []string{"2025-09-09", "2025-12-31"}) {
		t.Error("reverse mapping lost across flush/load")
	}
	roots := reloaded.Roots()
	if len(roots) != 2 || roots[0].ID != "2025-09-09" || roots[1].Description != "second" {
		t.Errorf("unexpected roots after reload: %+v", roots)
	}
}

func TestCorruptDocumentFallsBackToEmpty(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "restore_record.json")
	os.WriteFile(indexPath, []byte("[[["), 0o644)

	idx, warning := Open(indexPath)
	var corrupt *store.CorruptError
	if !errors.As(warning, &corrupt) {
		t.Fatal("expected corruption warning, got", warning)
	}
	if len(idx.Roots()) != 0 {
		t.Error("corrupt document must yield an empty index")
	}
}

func TestBuildTree(t *testing.T) {
	idx, _ := Open(filepath.Join(t.TempDir(), "restore_record.json"))
	idx.AddFileToRoot("2023-08-15", "", "WhatsApp/Media/Photos/img1.jpg")
	idx.AddFileToRoot("2025-09-09", "", "WhatsApp/Media/Photos/img1.jpg")
	idx.AddFileToRoot("2025-09-09", "", "Download/a.txt")

	tree := idx.BuildTree()
	if len(tree.Children) != 2 {
		t.Fatal("expected two top-level entries, got", len(tree.Children))
	}
	if tree.Children[0].Name != "Download" || tree.Children[1].Name != "WhatsApp" {
		t.Error("children not sorted by name")
	}

	photos := tree.Children[1].child("Media").child("Photos")
	if photos == nil {
		t.Fatal("nested directory missing")
	}
	leaf := photos.child("img1.jpg")
	if leaf == nil || !leaf.IsLeaf() {
		t.Fatal("leaf missing")
	}
	if leaf.Path != "WhatsApp/Media/Photos/img1.jpg" {
		t.Error("leaf path wrong:", leaf.Path)
	}
	if !reflect.DeepEqual(leaf.Roots, []string{"2023-08-15", "2025-09-09"}) {
		t.Error("leaf must list every containing root chronologically:", leaf.Roots)
	}
	if tree.Children[1].IsLeaf() {
		t.Error("directory node flagged as leaf")
	}
}
