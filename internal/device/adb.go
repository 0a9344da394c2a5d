package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultListTimeout     = 30 * time.Second
	defaultTransferTimeout = 15 * time.Minute
)

// ADB talks to an Android device through the adb executable. The zero value
// is not usable; construct with NewADB.
type ADB struct {
	executable      string
	listTimeout     time.Duration
	transferTimeout time.Duration
}

func NewADB(executable string) *ADB {
	if executable == "" {
		executable = "adb"
	}
	return &ADB{
		executable:      executable,
		listTimeout:     defaultListTimeout,
		transferTimeout: defaultTransferTimeout,
	}
}

func (a *ADB) run(timeout time.Duration, args ...string) (stdout string, stderr string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, a.executable, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("adb %s timed out after %s", args[0], timeout)
		}
		if deviceGone(stderr) {
			err = fmt.Errorf("%w: %s", ErrUnavailable, firstLine(stderr))
		}
	}
	return
}

func deviceGone(stderr string) bool {
	lowered := strings.ToLower(stderr)
	for _, marker := range []string{"no devices", "device offline", "device unauthorized", "device not found", "connection reset"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func firstLine(text string) string {
	if cut := strings.IndexByte(text, '\n'); cut >= 0 {
		text = text[:cut]
	}
	return strings.TrimSpace(text)
}

func (a *ADB) shell(timeout time.Duration, command string) (string, error) {
	stdout, stderr, err := a.run(timeout, "shell", command)
	if err != nil {
		return "", fmt.Errorf("adb shell failed (%s): %w", firstLine(stderr), err)
	}
	return strings.TrimSpace(stdout), nil
}

// Probe succeeds when at least one device is listed in the "device" state,
// i.e. not offline or unauthorized.
func (a *ADB) Probe() error {
	stdout, stderr, err := a.run(a.listTimeout, "devices")
	if err != nil {
		return fmt.Errorf("adb not reachable (%s): %w", firstLine(stderr), err)
	}
	if !anyDeviceReady(stdout) {
		return fmt.Errorf("%w: no device in ready state", ErrUnavailable)
	}
	return nil
}

func anyDeviceReady(devicesOutput string) bool {
	lines := strings.Split(devicesOutput, "\n")
	if len(lines) < 2 {
		return false
	}
	for _, line := range lines[1:] { // first line is the "List of devices" banner
		if strings.HasSuffix(strings.TrimRight(line, "\r"), "\tdevice") {
			return true
		}
	}
	return false
}

func (a *ADB) ListTopLevelEntries(root string) ([]string, error) {
	// -1p marks directories with a trailing slash, one entry per line
	out, err := a.shell(a.listTimeout, fmt.Sprintf("ls -1p %q", strings.TrimRight(root, "/")))
	if err != nil {
		return nil, err
	}
	return parseDirectoryListing(out), nil
}

func parseDirectoryListing(out string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if !strings.HasSuffix(name, "/") {
			continue
		}
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		if _, duplicate := seen[name]; duplicate {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *ADB) ListFiles(dir string) ([]string, error) {
	base := strings.TrimRight(dir, "/")

	out, err := a.shell(a.listTimeout, fmt.Sprintf("find %q -type f", base))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		// toybox find missing on some older builds
		out, err = a.shell(a.listTimeout, fmt.Sprintf("busybox find %q -type f", base))
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{})
	var files []string
	for _, line := range strings.Split(out, "\n") {
		file := strings.TrimSpace(line)
		if file == "" {
			continue
		}
		if _, duplicate := seen[file]; duplicate {
			continue
		}
		seen[file] = struct{}{}
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func (a *ADB) PullFile(remotePath string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("creating local directory failed: %w", err)
	}
	_, stderr, err := a.run(a.transferTimeout, "pull", remotePath, localPath)
	if err != nil {
		return fmt.Errorf("pull of %s failed (%s): %w", remotePath, firstLine(stderr), err)
	}
	return nil
}

func (a *ADB) PushFile(localPath string, remotePath string) error {
	_, stderr, err := a.run(a.transferTimeout, "push", localPath, remotePath)
	if err != nil {
		return fmt.Errorf("push to %s failed (%s): %w", remotePath, firstLine(stderr), err)
	}
	return nil
}

func (a *ADB) MakeRemoteDir(remotePath string) error {
	remotePath = strings.TrimSpace(remotePath)
	if remotePath == "" {
		return nil
	}
	// -p tolerates existing directories and creates parents
	if _, err := a.shell(a.listTimeout, fmt.Sprintf("mkdir -p %q", remotePath)); err != nil {
		return fmt.Errorf("creating remote directory %s failed: %w", remotePath, err)
	}
	return nil
}
