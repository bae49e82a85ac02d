package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Prefix of every workspace directory, so Sweep only ever touches our own
const dirPrefix = "audio-api-"

// Workspace is a temporary directory exclusively owned by one unit of work
// (a segment, a transcription, a model invocation). Cleanup must be deferred
// immediately after Create.
type Workspace struct {
	Dir       string
	CreatedAt time.Time

	once sync.Once
	err  error
}

// Create makes a new workspace under root. An empty root means os.TempDir().
func Create(root, label string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root %s: %w", root, err)
	}
	dir := filepath.Join(root, fmt.Sprintf("%s%s-%s", dirPrefix, label, uuid.NewString()))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{
		Dir:       dir,
		CreatedAt: time.Now(),
	}, nil
}

// Path returns the absolute path of name inside the workspace
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Subdir creates and returns a directory inside the workspace
func (w *Workspace) Subdir(name string) (string, error) {
	dir := w.Path(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create workspace subdirectory %s: %w", name, err)
	}
	return dir, nil
}

// Cleanup removes the workspace directory and everything in it. Safe to call more than once.
func (w *Workspace) Cleanup() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.Dir)
	})
	return w.err
}

// Sweep deletes workspaces under root older than maxAge, left behind by a
// crashed or killed process. Returns the number of workspaces removed.
func Sweep(root string, maxAge time.Duration) (int, error) {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("error listing workspace root %s: %w", root, err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if match, _ := filepath.Match(dirPrefix+"*", entry.Name()); !match {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, fmt.Errorf("error removing workspace %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
