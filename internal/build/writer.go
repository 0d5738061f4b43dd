package build

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/novos/internal/nverr"
)

// Artifact is the output of rendering one node: a path under the output root
// plus byte content. Skip marks an artifact whose content is known unchanged
// from the previous build, so no disk write (and no downstream invalidation)
// happens.
type Artifact struct {
	Path string
	Data []byte
	Skip bool
}

// Writer owns the output tree. Writes are atomic (temp file + rename) and
// skipped when the on-disk bytes already match, which keeps repeat builds
// byte-identical and cheap.
type Writer struct {
	root string

	mu      sync.Mutex
	written map[string]bool
}

// NewWriter creates a writer rooted at the output directory.
func NewWriter(root string) *Writer {
	return &Writer{root: root, written: make(map[string]bool)}
}

// Root returns the output root directory.
func (w *Writer) Root() string { return w.root }

// Clean removes the output tree. Used when clean_output is set.
func (w *Writer) Clean() error {
	if err := os.RemoveAll(w.root); err != nil {
		return nverr.WriteFailed(w.root, err)
	}
	return nil
}

// Write persists one artifact. It reports whether bytes actually hit disk:
// false for skip-marked artifacts and for content identical to the existing
// file.
func (w *Writer) Write(a Artifact) (bool, error) {
	if a.Skip {
		return false, nil
	}
	dest := filepath.Join(w.root, filepath.FromSlash(a.Path))

	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, a.Data) {
		w.markWritten(a.Path)
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, nverr.WriteFailed(a.Path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".novos-*")
	if err != nil {
		return false, nverr.WriteFailed(a.Path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, nverr.WriteFailed(a.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, nverr.WriteFailed(a.Path, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return false, nverr.WriteFailed(a.Path, err)
	}

	w.markWritten(a.Path)
	return true, nil
}

func (w *Writer) markWritten(path string) {
	w.mu.Lock()
	w.written[path] = true
	w.mu.Unlock()
}

// Written reports whether path was produced during this process lifetime.
func (w *Writer) Written(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written[path]
}
