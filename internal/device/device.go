// Package device defines the transport to the external device and ships an
// adb-subprocess-backed implementation. The reconciliation core depends on
// the Transport interface only; how bytes actually move is irrelevant to it.
package device

import "errors"

// ErrUnavailable signals that the device itself is gone (disconnected,
// unauthorized, powered off). Transports wrap it into their errors so the
// orchestrator can distinguish device loss from a single failing file.
var ErrUnavailable = errors.New("device unavailable")

// Transport is the serialized channel to one device. Ordinary failures are
// reported as errors, never panics. Implementations are not required to be
// safe for concurrent use; the core issues calls sequentially.
type Transport interface {
	// Probe verifies that the device is reachable.
	Probe() error

	// ListTopLevelEntries lists the names of directories immediately below
	// the given device root, sorted and unique.
	ListTopLevelEntries(root string) ([]string, error)

	// ListFiles recursively enumerates all files below the given device
	// directory as absolute device paths, sorted and unique.
	ListFiles(dir string) ([]string, error)

	// PullFile copies one device file to the given local path, creating
	// missing parent directories locally.
	PullFile(remotePath string, localPath string) error

	// PushFile copies one local file to the given device path. Remote parent
	// directories must exist; see MakeRemoteDir.
	PushFile(localPath string, remotePath string) error

	// MakeRemoteDir creates a directory on the device, tolerating an already
	// existing one.
	MakeRemoteDir(remotePath string) error
}
