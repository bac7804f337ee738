package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// timestampLayout renders run timestamps in artifact names.
const timestampLayout = "20060102_150405"

// FileName builds "<name>_<YYYYmmdd_HHMMSS><ext>" for ts in UTC.
func FileName(name string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", name, ts.UTC().Format(timestampLayout), ext)
}

// writeAtomic writes data to path through a temp file in the same directory,
// so readers either see the previous state or the complete file.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &catalog.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &catalog.IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &catalog.IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &catalog.IOError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &catalog.IOError{Op: "close", Path: path, Err: err}
	}
	if err = os.Chmod(tmpName, 0o640); err != nil {
		return &catalog.IOError{Op: "chmod", Path: path, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &catalog.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
