// Package devpath maps device-side POSIX paths to local filesystem paths.
// Device paths are always forward-slash separated regardless of the host OS.
package devpath

import (
	"errors"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrPathTooLong indicates that the mapped local path would exceed the
// platform limit. Callers are expected to fail the single file, not the run.
var ErrPathTooLong = errors.New("mapped local path exceeds platform length limit")

// Characters that are rejected by at least one supported target filesystem.
// Sanitization is applied on every platform so that a ledger written on one
// OS stays valid on another.
const illegalChars = `:*?"<>|`

const substituteChar = '_'

func maxLocalPathLen() int {
	if runtime.GOOS == "windows" {
		return 259
	}
	return 4095
}

// Normalize brings a device-relative path into canonical form: trimmed,
// forward slashes, no leading "./", no trailing slash. Two device paths are
// considered identical iff their normalized forms are equal.
func Normalize(p string) string {
	s := strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	return strings.TrimRight(s, "/")
}

// Relative computes the device-relative path of an absolute device path with
// respect to a base directory, e.g. ("/sdcard/Download/Sub/f.txt",
// "/sdcard/Download") yields "Sub/f.txt".
func Relative(absolute string, base string) string {
	cleanedBase := path.Clean(strings.TrimRight(base, "/"))
	cleanedAbs := path.Clean(absolute)
	if cleanedAbs == cleanedBase {
		return ""
	}
	if strings.HasPrefix(cleanedAbs, cleanedBase+"/") {
		return Normalize(cleanedAbs[len(cleanedBase)+1:])
	}
	return Normalize(cleanedAbs)
}

// SanitizeSegment replaces every illegal character in a single path segment
// with an underscore. Separators must not be part of the input.
func SanitizeSegment(segment string) string {
	if !strings.ContainsAny(segment, illegalChars) {
		return segment
	}
	var clean strings.Builder
	clean.Grow(len(segment))
	for _, r := range segment {
		if strings.ContainsRune(illegalChars, r) {
			clean.WriteRune(substituteChar)
		} else {
			clean.WriteRune(r)
		}
	}
	return clean.String()
}

// ToLocal maps a normalized device-relative path to a local filesystem path
// below localRoot. Each segment is sanitized independently, segment order and
// count are preserved. The function is pure and deterministic: mapping the
// same input twice yields the same output. Note that sanitization may map two
// distinct device paths onto the same local path; resolving that collision is
// the caller's responsibility.
func ToLocal(rel string, localRoot string) (string, error) {
	segments := strings.Split(Normalize(rel), "/")
	for i, segment := range segments {
		segments[i] = SanitizeSegment(segment)
	}
	local := filepath.Join(localRoot, filepath.Join(segments...))
	if len(local) > maxLocalPathLen() {
		return "", ErrPathTooLong
	}
	return local, nil
}
