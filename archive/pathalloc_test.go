package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathAllocatorAllocateUnique(t *testing.T) {
	dir := t.TempDir()
	a := NewPathAllocator(dir)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := a.Allocate([]byte("PNG0"), "http://example.com/a.png")
		if seen[name] {
			t.Fatalf("Allocate returned duplicate name %q", name)
		}
		seen[name] = true
	}
}

func TestPathAllocatorExtensionFromMIMESniff(t *testing.T) {
	dir := t.TempDir()
	a := NewPathAllocator(dir)

	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	name := a.Allocate(pngMagic, "http://example.com/asset")
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("expected sniffed .png extension, got %q", name)
	}
}

func TestPathAllocatorExtensionFallsBackToURL(t *testing.T) {
	dir := t.TempDir()
	a := NewPathAllocator(dir)

	name := a.Allocate(nil, "http://example.com/style.css?version=2")
	if !strings.HasSuffix(name, ".css") {
		t.Errorf("expected URL-derived .css extension, got %q", name)
	}
}

func TestPathAllocatorAvoidsFilesystemCollision(t *testing.T) {
	dir := t.TempDir()
	a := NewPathAllocator(dir)

	// Write a file at a previously allocated name: later allocations must
	// never return a name that already exists on disk.
	name := a.Allocate([]byte("PNG0"), "http://example.com/a.png")
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create collision file: %v", err)
	}

	for i := 0; i < 50; i++ {
		next := a.Allocate([]byte("PNG0"), "http://example.com/a.png")
		if next == name {
			t.Fatalf("Allocate reused a name already present on disk: %q", next)
		}
	}
}

func TestPathAllocatorDir(t *testing.T) {
	dir := t.TempDir()
	a := NewPathAllocator(dir)
	if a.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", a.Dir(), dir)
	}
}

func TestRelativeOf(t *testing.T) {
	tests := []struct {
		name     string
		fromFile string
		toPath   string
		want     string
	}{
		{
			name:     "same directory",
			fromFile: filepath.Join("tab", "index.html"),
			toPath:   filepath.Join("tab", "index_files", "a.png"),
			want:     "index_files/a.png",
		},
		{
			name:     "nested document",
			fromFile: filepath.Join("tab", "index_files", "frame.html"),
			toPath:   filepath.Join("tab", "index_files", "b.png"),
			want:     "b.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelativeOf(tt.fromFile, tt.toPath)
			if got != tt.want {
				t.Errorf("RelativeOf(%q, %q) = %q, want %q", tt.fromFile, tt.toPath, got, tt.want)
			}
		})
	}
}
