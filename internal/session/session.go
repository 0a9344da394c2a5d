// Package session orchestrates one backup run: listing candidates on the
// device, filtering, transferring new files, and committing results to the
// ledger and the restore index. Per-file processing is independent; a single
// failing file never aborts the run.
package session

import (
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/seafork/devmirror/internal/device"
	"github.com/seafork/devmirror/internal/devpath"
	"github.com/seafork/devmirror/internal/filter"
	"github.com/seafork/devmirror/internal/index"
	"github.com/seafork/devmirror/internal/ledger"
)

// Phase is the orchestrator's coarse progress through one run.
type Phase int

const (
	Idle Phase = iota
	Listing
	Filtering
	Transferring
	Committing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Listing:
		return "listing"
	case Filtering:
		return "filtering"
	case Transferring:
		return "transferring"
	case Committing:
		return "committing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// FileStatus is the outcome of processing one enumerated file.
type FileStatus rune

const (
	Pending        FileStatus = '.'
	SkippedAlready FileStatus = '='
	Copied         FileStatus = '+'
	TransferFailed FileStatus = '!'
)

func (s FileStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case SkippedAlready:
		return "skipped"
	case Copied:
		return "copied"
	case TransferFailed:
		return "failed"
	}
	return "unknown"
}

// FileResult captures the outcome of one file within a session.
type FileResult struct {
	DevicePath string // device-relative, normalized
	LocalPath  string // empty unless a transfer was attempted
	Status     FileStatus
	Message    string // diagnostic for failures
}

// Progress is emitted at every phase transition and per-file transition.
// Path and Status are only meaningful on per-file events.
type Progress struct {
	Phase   Phase
	Path    string
	Status  FileStatus
	Copied  int
	Skipped int
	Failed  int
}

// Report is the ephemeral session record: it exists for progress reporting
// and logging only and is never persisted beyond the side effects committed
// to the ledger and the restore index.
type Report struct {
	SessionID uuid.UUID
	RootID    string
	Phase     Phase
	Results   []FileResult
	Copied    int
	Skipped   int
	Failed    int
	Aborted   bool // transport lost mid-run, partial commit happened
	Cancelled bool // caller cancelled, partial commit happened
	Warnings  []string
}

// Options wires one orchestrator run. Ledger and Index are exclusively owned
// by the orchestrator for the duration of the run.
type Options struct {
	Transport   device.Transport
	Ledger      *ledger.Ledger
	Index       *index.Index
	Filters     filter.Set
	DeviceRoot  string // absolute device path, e.g. "/sdcard"
	LocalRoot   string // local destination of this session
	RootID      string
	Description string
	Observer    func(Progress)  // optional
	Cancel      <-chan struct{} // optional, polled between files
}

type Orchestrator struct {
	opts   Options
	report *Report
	// local destinations assigned this run; guards against two distinct
	// device paths sanitizing to the same local path
	claimed map[string]string
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		opts: opts,
		report: &Report{
			SessionID: uuid.New(),
			RootID:    opts.RootID,
			Phase:     Idle,
		},
		claimed: make(map[string]string),
	}
}

// SessionID identifies this run in logs and progress reporting.
func (o *Orchestrator) SessionID() uuid.UUID {
	return o.report.SessionID
}

func (o *Orchestrator) enterPhase(phase Phase) {
	o.report.Phase = phase
	o.emit(Progress{Phase: phase, Copied: o.report.Copied, Skipped: o.report.Skipped, Failed: o.report.Failed})
}

func (o *Orchestrator) emit(p Progress) {
	if o.opts.Observer != nil {
		o.opts.Observer(p)
	}
}

func (o *Orchestrator) cancelled() bool {
	select {
	case <-o.opts.Cancel:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) recordFile(result FileResult) {
	o.report.Results = append(o.report.Results, result)
	switch result.Status {
	case Copied:
		o.report.Copied++
	case SkippedAlready:
		o.report.Skipped++
	case TransferFailed:
		o.report.Failed++
	}
	o.emit(Progress{
		Phase:   Transferring,
		Path:    result.DevicePath,
		Status:  result.Status,
		Copied:  o.report.Copied,
		Skipped: o.report.Skipped,
		Failed:  o.report.Failed,
	})
}

func (o *Orchestrator) warn(format string, values ...interface{}) {
	o.report.Warnings = append(o.report.Warnings, fmt.Sprintf(format, values...))
}

// Run executes one backup session. If folders is nil the top-level entries of
// the device root are discovered and filtered; an explicit selection is
// filtered as well. Run returns an error only for unrecoverable setup
// failures (the session ends in Failed then); per-file failures and mid-run
// device loss end in Done with the partial results committed.
func (o *Orchestrator) Run(folders []string) (*Report, error) {
	report := o.report

	o.enterPhase(Listing)
	if err := o.opts.Transport.Probe(); err != nil {
		o.enterPhase(Failed)
		return report, fmt.Errorf("device not ready: %w", err)
	}
	if folders == nil {
		listed, err := o.opts.Transport.ListTopLevelEntries(o.opts.DeviceRoot)
		if err != nil {
			o.enterPhase(Failed)
			return report, fmt.Errorf("listing device folders failed: %w", err)
		}
		folders = listed
	}

	o.enterPhase(Filtering)
	folders = o.opts.Filters.Apply(folders)

	o.enterPhase(Transferring)
	o.transferAll(folders)

	o.enterPhase(Committing)
	o.commit()

	o.enterPhase(Done)
	return report, nil
}

func (o *Orchestrator) transferAll(folders []string) {
	for _, folder := range folders {
		if o.report.Aborted || o.report.Cancelled {
			return
		}
		folderPath := path.Join(o.opts.DeviceRoot, folder)
		files, err := o.opts.Transport.ListFiles(folderPath)
		if err != nil {
			if errors.Is(err, device.ErrUnavailable) {
				o.warn("device lost while listing %s, stopping transfers", folder)
				o.report.Aborted = true
				return
			}
			o.warn("listing %s failed, folder skipped: %s", folder, err)
			continue
		}
		for _, remoteFile := range files {
			if o.cancelled() {
				o.report.Cancelled = true
				return
			}
			rel := path.Join(folder, devpath.Relative(remoteFile, folderPath))
			o.transferOne(remoteFile, devpath.Normalize(rel))
			if o.report.Aborted {
				return
			}
		}
	}
}

func (o *Orchestrator) transferOne(remoteFile string, rel string) {
	if o.opts.Ledger.Contains(rel) {
		o.recordFile(FileResult{DevicePath: rel, Status: SkippedAlready})
		return
	}

	localPath, err := devpath.ToLocal(rel, o.opts.LocalRoot)
	if err != nil {
		o.recordFile(FileResult{DevicePath: rel, Status: TransferFailed, Message: err.Error()})
		return
	}
	if claimedBy, taken := o.claimed[localPath]; taken && claimedBy != rel {
		// sanitization collision with another device path of this run:
		// refuse instead of silently overwriting the earlier file
		o.recordFile(FileResult{
			DevicePath: rel,
			Status:     TransferFailed,
			Message:    fmt.Sprintf("local path collision with %s after sanitization", claimedBy),
		})
		return
	}

	if err := o.opts.Transport.PullFile(remoteFile, localPath); err != nil {
		if errors.Is(err, device.ErrUnavailable) {
			o.warn("device lost while pulling %s, stopping transfers", rel)
			o.report.Aborted = true
		}
		o.recordFile(FileResult{DevicePath: rel, LocalPath: localPath, Status: TransferFailed, Message: err.Error()})
		return
	}

	o.claimed[localPath] = rel
	o.recordFile(FileResult{DevicePath: rel, LocalPath: localPath, Status: Copied})
}

// commit records every successfully copied file in the ledger and the restore
// index, then flushes both. The two stores are independently durable; a flush
// failure is retried once and otherwise surfaced as a warning while the
// in-memory state is retained for a later retry.
func (o *Orchestrator) commit() {
	for _, result := range o.report.Results {
		if result.Status != Copied {
			continue
		}
		o.opts.Ledger.RecordSuccess(result.DevicePath)
		o.opts.Index.AddFileToRoot(o.opts.RootID, o.opts.Description, result.DevicePath)
	}

	o.flushWithRetry("ledger", o.opts.Ledger.Flush)
	o.flushWithRetry("restore index", o.opts.Index.Flush)
}

func (o *Orchestrator) flushWithRetry(label string, flush func() error) {
	err := flush()
	if err == nil {
		return
	}
	if err = flush(); err == nil {
		return
	}
	// copied files stay recorded in memory only until the next successful
	// flush; this divergence is acknowledged, not silent
	o.warn("persisting %s failed, records kept in memory: %s", label, err)
}
