package archive

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// PathAllocator hands out unique local filenames inside an index_files
// directory, named <random-id><ext>, collision-checked against both the
// in-memory allocation set and the filesystem. It is safe for concurrent use
// by every handler racing to claim a path for a freshly downloaded resource.
type PathAllocator struct {
	mu        sync.Mutex
	dir       string
	allocated map[string]bool
}

// NewPathAllocator creates an allocator rooted at dir. Neither it nor
// Allocate creates dir; the handlers create it when writing the first asset.
func NewPathAllocator(dir string) *PathAllocator {
	return &PathAllocator{
		dir:       dir,
		allocated: make(map[string]bool),
	}
}

// Allocate reserves a new filename for content whose bytes are in data
// (used for MIME sniffing) and whose source URL is sourceURL (used as an
// extension fallback when sniffing is inconclusive). It returns the
// allocated filename, relative to the allocator's directory.
func (a *PathAllocator) Allocate(data []byte, sourceURL string) string {
	ext := extensionFor(data, sourceURL)

	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		name := uuid.New().String() + ext
		if a.allocated[name] {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.dir, name)); err == nil {
			continue
		}
		a.allocated[name] = true
		return name
	}
}

// Dir returns the directory this allocator allocates names within.
func (a *PathAllocator) Dir() string {
	return a.dir
}

// extensionFor chooses a filename extension the way the original
// implementation's MimeFileExtension did: sniff the content first, fall back
// to whatever extension the source URL's path already carries.
func extensionFor(data []byte, sourceURL string) string {
	if len(data) > 0 {
		mt := mimetype.Detect(data)
		if ext := mt.Extension(); ext != "" {
			return ext
		}
	}

	if sourceURL != "" {
		if ext := filepath.Ext(stripQueryAndFragment(sourceURL)); ext != "" && len(ext) <= 8 {
			return ext
		}
	}

	return ""
}

func stripQueryAndFragment(u string) string {
	u = strings.SplitN(u, "#", 2)[0]
	u = strings.SplitN(u, "?", 2)[0]
	return u
}

// RelativeOf computes the relative path from the directory of fromFile to
// toPath, falling back to toPath unchanged if no relative path can be
// computed (mirrors the original's get_relpath_from exception-swallowing
// fallback, and the teacher's ComputeRelativePath).
func RelativeOf(fromFile, toPath string) string {
	rel, err := filepath.Rel(filepath.Dir(fromFile), toPath)
	if err != nil {
		return toPath
	}
	return filepath.ToSlash(rel)
}
