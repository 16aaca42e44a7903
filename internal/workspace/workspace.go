package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultPrefix names temporary workspaces created by the tool
const DefaultPrefix = "strict-tree-cmp-"

// Workspace is a temporary directory owned by a single run.
// Close removes it together with everything below it.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// New creates a fresh temporary workspace
func New(prefix string) (*Workspace, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Entries lists the top level entry names, sorted
func (w *Workspace) Entries() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Close removes the workspace recursively. Safe to call more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		// Extracted trees may contain read-only directories
		_ = filepath.WalkDir(w.dir, func(p string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				_ = os.Chmod(p, 0o755)
			}
			return nil
		})
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("remove workspace %s: %w", w.dir, err)
		}
	})
	return w.err
}
