// Package devmirror copies files from a mounted external device to a local
// filesystem across repeated sessions without re-copying known files, and
// maintains a restore index letting any previously copied file be pushed back
// to the device.
package devmirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/n2code/ndocid"

	"github.com/seafork/devmirror/internal/device"
	"github.com/seafork/devmirror/internal/filter"
	"github.com/seafork/devmirror/internal/index"
	"github.com/seafork/devmirror/internal/ledger"
	"github.com/seafork/devmirror/internal/output"
	"github.com/seafork/devmirror/internal/session"
)

type VerbosityLevel int

const (
	DefaultVerbosity VerbosityLevel = iota
	VerboseMode
	QuietMode
)

// Names of the documents kept in each user scope directory.
const (
	LedgerFileName    = "backup_record.json"
	IndexFileName     = "restore_record.json"
	FiltersFileName   = "filters.json"
	FailedCsvFileName = "failed_transfers.csv"
)

// CreateConfig holds common configuration for all calls to the devmirror API.
// The zero value is a sensible default.
type CreateConfig struct {
	Verbosity  VerbosityLevel
	DeviceRoot string // absolute device source root, default "/sdcard"

	// MinFreeSpace is the number of bytes that must be free below the user
	// scope before a backup starts (default 64 MiB). SkipSpaceCheck disables
	// the preflight entirely.
	MinFreeSpace   uint64
	SkipSpaceCheck bool

	// AllowEscapeSequences enables terminal formatting in printed output.
	AllowEscapeSequences bool
}

// BackupRequest describes one backup session.
type BackupRequest struct {
	// Folders restricts the session to the given top-level device folders.
	// nil means: discover all top-level folders and apply the filter config.
	Folders []string

	// Description is stored with a newly created session root.
	Description string

	// FreshRoot forces a new session root even if one for today exists
	// already; by default same-day sessions merge into the date root.
	FreshRoot bool

	Cancel     <-chan struct{}        // optional, polled between files
	OnProgress func(session.Progress) // optional
}

// RootChooser picks the source root for a restored path out of the roots that
// contain it (oldest first). Returning the empty string skips the path.
type RootChooser func(path string, roots []string) (rootID string)

// Devmirror lets you interface with one user scope whose handle was
// retrieved using Open. A scope must not be used by more than one backup or
// restore operation at a time.
type Devmirror interface {

	// Backup runs one session: list candidate folders, filter, pull files
	// that the ledger does not know yet, and commit every success to the
	// ledger and the restore index. Per-file failures never abort the
	// session; the report lists each file's outcome. An error is returned
	// for unrecoverable setup failures only.
	Backup(request BackupRequest) (*session.Report, error)

	// Restore pushes previously backed-up files back to the device. For each
	// path the chooser picks the source root; remote parent directories are
	// created as needed.
	Restore(paths []string, choose RootChooser) error

	// PrintRestoreTree renders the unified restore namespace across all
	// session roots, with every leaf listing the roots containing it.
	PrintRestoreTree()

	// PrintRoots lists all session roots with description and file count.
	PrintRoots()

	// PrintLedger lists every path the ledger knows, i.e. everything that
	// will be skipped by future sessions.
	PrintLedger()
}

type devmirror struct {
	transport device.Transport
	led       *ledger.Ledger
	idx       *index.Index
	filters   filter.Set

	userDir    string // absolute
	deviceRoot string

	minFreeSpace   uint64
	skipSpaceCheck bool

	out                   io.Writer //essential output (i.e. requested information)
	extraOut              io.Writer //more output for convenience (repeats context)
	verboseOut            io.Writer //most output, talkative
	errOut                io.Writer //error output
	fancyTerminalFeatures bool
}

const defaultDeviceRoot = "/sdcard"
const defaultMinFreeSpace = 64 << 20

// Open loads (or lazily creates) the user scope rooted at userDir. Corrupted
// ledger or index documents are reported as warnings and replaced by empty
// ones so that a damaged record never blocks new backups.
func Open(userDir string, transport device.Transport, config CreateConfig) (Devmirror, error) {
	handle := makeDevmirror(transport, config)

	absUserDir, err := filepath.Abs(userDir)
	if err != nil {
		return nil, fmt.Errorf("user scope error: %w", err)
	}
	if err := os.MkdirAll(absUserDir, 0o755); err != nil {
		return nil, fmt.Errorf("user scope error: %w", err)
	}
	handle.userDir = absUserDir

	handle.led, err = ledger.Open(filepath.Join(absUserDir, LedgerFileName))
	if err != nil {
		handle.warn("backup record unusable, starting with an empty one: %s", err)
	}
	handle.idx, err = index.Open(filepath.Join(absUserDir, IndexFileName))
	if err != nil {
		handle.warn("restore record unusable, starting with an empty one: %s", err)
	}
	handle.filters, err = filter.Load(filepath.Join(absUserDir, FiltersFileName))
	if err != nil {
		handle.warn("filter configuration unusable, no folders excluded: %s", err)
	}
	return handle, nil
}

func makeDevmirror(transport device.Transport, config CreateConfig) (instance *devmirror) {
	instance = &devmirror{
		transport:             transport,
		deviceRoot:            config.DeviceRoot,
		minFreeSpace:          config.MinFreeSpace,
		skipSpaceCheck:        config.SkipSpaceCheck,
		out:                   os.Stdout,
		extraOut:              io.Discard,
		verboseOut:            io.Discard,
		errOut:                os.Stderr,
		fancyTerminalFeatures: config.AllowEscapeSequences,
	}
	if instance.deviceRoot == "" {
		instance.deviceRoot = defaultDeviceRoot
	}
	if instance.minFreeSpace == 0 {
		instance.minFreeSpace = defaultMinFreeSpace
	}
	switch config.Verbosity {
	case VerboseMode:
		instance.verboseOut = os.Stdout
		fallthrough
	case DefaultVerbosity:
		instance.extraOut = os.Stdout
	}
	return
}

func (d *devmirror) warn(format string, values ...interface{}) {
	message := fmt.Sprintf(format, values...)
	if d.fancyTerminalFeatures {
		message = output.TerminalFormatAsWarning(message)
	}
	fmt.Fprintf(d.errOut, "warning: %s\n", message)
}

// rootIDForSession yields today's date root, or a fresh collision-avoided one
// when requested and the plain date is taken already. The suffix encodes the
// current Unix timestamp, so lexicographic order stays chronological.
func (d *devmirror) rootIDForSession(now time.Time, fresh bool) string {
	date := now.Format("2006-01-02")
	if !fresh || !d.idx.HasRoot(date) {
		return date
	}
	candidate := fmt.Sprintf("%s.%s", date, ndocid.EncodeUint64(uint64(now.Unix())))
	for d.idx.HasRoot(candidate) {
		now = now.Add(time.Second)
		candidate = fmt.Sprintf("%s.%s", date, ndocid.EncodeUint64(uint64(now.Unix())))
	}
	return candidate
}

func (d *devmirror) PrintRestoreTree() {
	label := d.userDir + " [restore index]"
	tree := output.NewRestoreTree(label, d.idx.BuildTree())
	fmt.Fprint(d.out, tree.Render())
}

func (d *devmirror) PrintRoots() {
	roots := d.idx.Roots()
	if len(roots) == 0 {
		fmt.Fprintln(d.extraOut, "<no session roots>")
		return
	}
	for _, root := range roots {
		description := root.Description
		if d.fancyTerminalFeatures {
			description = output.TerminalFormatAsDim(description)
		}
		fmt.Fprintf(d.out, "%s  %4d %s  %s\n", root.ID, root.FileCount, output.Plural(root.FileCount, "file ", "files"), description)
	}
}

func (d *devmirror) PrintLedger() {
	paths := d.led.Paths()
	for _, rel := range paths {
		fmt.Fprintln(d.out, rel)
	}
	fmt.Fprintf(d.extraOut, "\n%d %s on record\n", len(paths), output.Plural(len(paths), "path", "paths"))
}
