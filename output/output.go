// Package output resolves the final archive destination and manages the
// scratch working directory an archive operation stages its tabs in before
// they are zipped up: the teacher's "resolve an output path, create parent
// dirs as needed" idiom, retargeted from a single output HTML file to a
// .maff container plus its disposable tab staging area.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maffExt = ".maff"

// ArchivePath appends ".maff" to basename if it isn't already present and
// ensures the parent directory exists, returning the path the final archive
// zip should be written to.
func ArchivePath(basename string) (string, error) {
	path := basename
	if !strings.EqualFold(filepath.Ext(path), maffExt) {
		path += maffExt
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return path, nil
}

// NewWorkDir creates the scratch directory an archive operation stages its
// tab directories under. The caller owns the returned path and must remove
// it (via Cleanup) once the final .maff has been written or the operation
// has failed; per spec.md §5, a cancelled or failed archive discards this
// directory entirely without adding anything to the output zip.
func NewWorkDir() (string, error) {
	dir, err := os.MkdirTemp("", "maffarchive-")
	if err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}

// Cleanup removes a working directory created by NewWorkDir. It is safe to
// call on every exit path (success or failure) and with an empty dir.
func Cleanup(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
