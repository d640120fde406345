package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Tab is one archived page: a directory holding index.<ext>, index.rdf, and
// index_files/, ready to be zipped into a .maff container. This mirrors the
// reference implementation's Envelop entries (lemmiwinks/archive/archive.py),
// kept as a slice on Archive so a future multi-URL invocation only needs to
// append more tabs, not redesign the writer.
type Tab struct {
	Dir   string
	Index *IndexFile
}

// Archive collects tabs and packages them into a single .maff zip file.
type Archive struct {
	workDir string
	tabs    []Tab
}

// NewArchive creates an Archive that stages tab directories under workDir
// (a scratch directory removed by the caller once WriteMAFF succeeds).
func NewArchive(workDir string) *Archive {
	return &Archive{workDir: workDir}
}

// AddTab fetches and migrates rootURL into a new tab directory under the
// archive's working directory.
func (a *Archive) AddTab(ctx context.Context, mc *MigrationContext, rootURL string, jsExec bool) error {
	tabName := fmt.Sprintf("%d", len(a.tabs)+1)
	tabDir := filepath.Join(a.workDir, tabName)
	filesDir := filepath.Join(tabDir, "index_files")

	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return fmt.Errorf("creating tab directory: %w", err)
	}
	mc.Alloc = NewPathAllocator(filesDir)

	idx, err := mc.MigrateRoot(ctx, rootURL, tabDir, jsExec)
	if err != nil {
		return fmt.Errorf("migrating %s: %w", rootURL, err)
	}

	rdf := BuildRDF(idx)
	if err := os.WriteFile(filepath.Join(tabDir, "index.rdf"), rdf, 0o644); err != nil {
		return fmt.Errorf("writing index.rdf: %w", err)
	}

	a.tabs = append(a.tabs, Tab{Dir: tabDir, Index: idx})
	return nil
}

// WriteMAFF packages every staged tab into a single zip file at outputPath,
// deflate-compressed, with arcnames relative to the tab's own directory name
// (so the zip root contains "1/index.html", "1/index.rdf", "1/index_files/...",
// matching the Mozilla Archive Format layout).
func (a *Archive) WriteMAFF(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, tab := range a.tabs {
		tabName := filepath.Base(tab.Dir)
		if err := addTabToZip(zw, tab.Dir, tabName); err != nil {
			zw.Close()
			return fmt.Errorf("archiving tab %s: %w", tabName, err)
		}
	}

	return zw.Close()
}

func addTabToZip(zw *zip.Writer, tabDir, tabName string) error {
	return filepath.Walk(tabDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(tabDir, path)
		if err != nil {
			return err
		}
		arcname := filepath.ToSlash(filepath.Join(tabName, rel))

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = arcname
		header.Method = zip.Deflate
		header.Modified = time.Now()

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
}
