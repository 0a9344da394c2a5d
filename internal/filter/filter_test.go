package filter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/seafork/devmirror/internal/store"
)

func TestSubstringSemantics(t *testing.T) {
	set := New([]string{"Android", ".thumbnails"})

	if set.Allow("Android") || set.Allow("MyAndroidStuff") {
		t.Error("substring match must exclude containing names")
	}
	if !set.Allow("android") {
		t.Error("matching must be case-sensitive")
	}
	if !set.Allow("Download") {
		t.Error("unrelated name excluded")
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	set := New([]string{"Android", "Android", ""}) // duplicates and blanks dropped
	if len(set.Excluded()) != 1 {
		t.Error("expected deduplicated exclusions:", set.Excluded())
	}

	input := []string{"Download", "Android", "Pictures", "OldAndroid", "Music"}
	expected := []string{"Download", "Pictures", "Music"}
	if actual := set.Apply(input); !reflect.DeepEqual(actual, expected) {
		t.Error("expected", expected, "but got", actual)
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "filters.json")

	set, warning := Load(configPath)
	if warning != nil || len(set.Excluded()) != 0 {
		t.Error("missing config must mean no exclusions:", warning, set.Excluded())
	}

	os.WriteFile(configPath, []byte(`{"excludedFolders": ["Android", ".SLOGAN"]}`), 0o644)
	set, warning = Load(configPath)
	if warning != nil {
		t.Fatal(warning)
	}
	if !reflect.DeepEqual(set.Excluded(), []string{"Android", ".SLOGAN"}) {
		t.Error("unexpected exclusions:", set.Excluded())
	}

	os.WriteFile(configPath, []byte("oops"), 0o644)
	set, warning = Load(configPath)
	var corrupt *store.CorruptError
	if !errors.As(warning, &corrupt) {
		t.Error("expected corruption warning, got", warning)
	}
	if len(set.Excluded()) != 0 {
		t.Error("corrupt config must mean no exclusions")
	}
}
