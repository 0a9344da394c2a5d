package device

import (
	"reflect"
	"testing"
)

func TestAnyDeviceReady(t *testing.T) {
	ready := "List of devices attached\nR58M123ABC\tdevice\n"
	if !anyDeviceReady(ready) {
		t.Error("ready device not detected")
	}

	for name, output := range map[string]string{
		"empty list":   "List of devices attached\n",
		"unauthorized": "List of devices attached\nR58M123ABC\tunauthorized\n",
		"offline":      "List of devices attached\nR58M123ABC\toffline\n",
		"no output":    "",
	} {
		if anyDeviceReady(output) {
			t.Errorf("%s wrongly treated as ready", name)
		}
	}
}

func TestParseDirectoryListing(t *testing.T) {
	out := "Download/\nPictures/\nnotes.txt\nPictures/\n\nAndroid/\n"
	expected := []string{"Android", "Download", "Pictures"}
	if actual := parseDirectoryListing(out); !reflect.DeepEqual(actual, expected) {
		t.Error("expected", expected, "but got", actual)
	}
}

func TestDeviceGone(t *testing.T) {
	if !deviceGone("adb: error: device offline") {
		t.Error("offline not recognized as device loss")
	}
	if deviceGone("adb: error: remote object does not exist") {
		t.Error("missing file wrongly treated as device loss")
	}
}
