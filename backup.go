package devmirror

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/seafork/devmirror/internal/output"
	"github.com/seafork/devmirror/internal/session"
)

func (d *devmirror) Backup(request BackupRequest) (*session.Report, error) {
	if err := d.checkFreeSpace(); err != nil {
		return nil, err
	}

	rootID := d.rootIDForSession(time.Now(), request.FreshRoot)
	description := request.Description
	if description == "" {
		description = "Backup on " + rootID
	}

	orchestrator := session.New(session.Options{
		Transport:   d.transport,
		Ledger:      d.led,
		Index:       d.idx,
		Filters:     d.filters,
		DeviceRoot:  d.deviceRoot,
		LocalRoot:   filepath.Join(d.userDir, rootID),
		RootID:      rootID,
		Description: description,
		Observer:    request.OnProgress,
		Cancel:      request.Cancel,
	})

	fmt.Fprintf(d.verboseOut, "Session %s starts (root %s)\n", orchestrator.SessionID(), rootID)
	report, err := orchestrator.Run(request.Folders)
	if err != nil {
		return report, newCommandError("backup session setup failed", err)
	}

	for _, warning := range report.Warnings {
		d.warn("%s", warning)
	}
	if writeErr := d.writeFailedCsv(report); writeErr != nil {
		d.warn("failure list not written: %s", writeErr)
	}
	d.printSummary(report)
	return report, nil
}

func (d *devmirror) checkFreeSpace() error {
	if d.skipSpaceCheck {
		return nil
	}
	usage, err := disk.Usage(d.userDir)
	if err != nil {
		// destination exists but its filesystem cannot be interrogated,
		// proceed and let individual transfers report real problems
		fmt.Fprintf(d.verboseOut, "Free space on destination unknown: %s\n", err)
		return nil
	}
	if usage.Free < d.minFreeSpace {
		return newCommandError(fmt.Sprintf("destination below free space floor (%d of %d bytes free)", usage.Free, d.minFreeSpace), nil)
	}
	fmt.Fprintf(d.verboseOut, "Destination has %d bytes free\n", usage.Free)
	return nil
}

// writeFailedCsv overwrites the per-scope failure list with this session's
// failed transfers so the latest state is always inspectable.
func (d *devmirror) writeFailedCsv(report *session.Report) error {
	file, err := os.Create(filepath.Join(d.userDir, FailedCsvFileName))
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	writer.Write([]string{"Failed paths"})
	for _, result := range report.Results {
		if result.Status == session.TransferFailed {
			writer.Write([]string{result.DevicePath})
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (d *devmirror) printSummary(report *session.Report) {
	switch {
	case report.Cancelled:
		fmt.Fprint(d.extraOut, "Session cancelled, partial progress committed.\n")
	case report.Aborted:
		fmt.Fprint(d.extraOut, "Device lost mid-session, partial progress committed.\n")
	}
	fmt.Fprintf(d.out, "%d copied, %d skipped (already backed up), %d failed\n",
		report.Copied, report.Skipped, report.Failed)
	if report.Failed > 0 {
		fmt.Fprintf(d.extraOut, "Failed %s listed in %s, eligible again on the next run.\n",
			output.Plural(report.Failed, "path is", "paths are"), FailedCsvFileName)
	}
}
