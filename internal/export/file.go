package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/scanning"
)

const reportDirPerm = 0o750

// Save encodes report and writes it to path atomically, creating parent
// directories as needed.
func Save(path string, f Format, report *scanning.ScanReport) error {
	data, err := Encode(f, report)
	if err != nil {
		return err
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to a temp file in the same directory, syncs it and
// renames it over path. On failure the temp file is removed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, reportDirPerm); err != nil {
		return errors.WrapScanErrorWithTarget(errors.CodeDirectoryCreate, "Failed to create report directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".netport-*.tmp")
	if err != nil {
		return errors.WrapScanErrorWithTarget(errors.CodeFileWrite, "Failed to create temp file", path, err)
	}
	tmpPath := tmp.Name()

	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.WrapScanErrorWithTarget(errors.CodeFileWrite, fmt.Sprintf("Failed to %s report", step), path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapScanErrorWithTarget(errors.CodeFileWrite, "Failed to close report", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapScanErrorWithTarget(errors.CodeFileWrite, "Failed to move report into place", path, err)
	}
	return nil
}
