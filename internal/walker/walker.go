package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
)

// IgnoreRules holds bare directory and file names excluded at any depth.
// A rule matches when it equals the name or matches it as a glob.
type IgnoreRules struct {
	Dirs  []string
	Files []string
}

// Validate rejects rules that could never match a bare name
func (r IgnoreRules) Validate() error {
	for _, group := range []struct {
		kind  string
		rules []string
	}{{"directory", r.Dirs}, {"file", r.Files}} {
		for _, rule := range group.rules {
			if rule == "" {
				return fmt.Errorf("empty %s ignore rule", group.kind)
			}
			if strings.ContainsAny(rule, `/\`) {
				return fmt.Errorf("%s ignore rule %q must be a bare name, not a path", group.kind, rule)
			}
			if !doublestar.ValidatePattern(rule) {
				return fmt.Errorf("invalid %s ignore pattern %q", group.kind, rule)
			}
		}
	}
	return nil
}

// IgnoreDir reports whether a directory with the given bare name is pruned
func (r IgnoreRules) IgnoreDir(name string) bool {
	return matchAny(r.Dirs, name)
}

// IgnoreFile reports whether a file with the given bare name is skipped
func (r IgnoreRules) IgnoreFile(name string) bool {
	return matchAny(r.Files, name)
}

func matchAny(rules []string, name string) bool {
	for _, rule := range rules {
		if rule == name {
			return true
		}
		if matched, _ := doublestar.Match(rule, name); matched {
			return true
		}
	}
	return false
}

// Snapshot is the set of relative directory and file paths under one root.
// Both lists use forward slashes and are sorted byte-wise.
type Snapshot struct {
	Dirs  []string
	Files []string
}

// Walker walks one tree applying ignore rules
type Walker struct {
	fsys   fs.FS
	label  string
	rules  IgnoreRules
	logger *logging.Logger
}

// NewWalker creates a walker for a local directory
func NewWalker(root string, rules IgnoreRules, logger *logging.Logger) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	// Validate root exists and is a directory
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	return NewFSWalker(os.DirFS(absRoot), absRoot, rules, logger), nil
}

// NewFSWalker creates a walker over an arbitrary filesystem. label is only used in log output.
func NewFSWalker(fsys fs.FS, label string, rules IgnoreRules, logger *logging.Logger) *Walker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Walker{
		fsys:   fsys,
		label:  label,
		rules:  rules,
		logger: logger,
	}
}

// FS returns the filesystem the walker reads from
func (w *Walker) FS() fs.FS {
	return w.fsys
}

// Label returns the root shown in log output; for NewWalker it is the absolute root path
func (w *Walker) Label() string {
	return w.label
}

// Walk walks the tree and returns its snapshot
func (w *Walker) Walk() (*Snapshot, error) {
	snap := &Snapshot{Dirs: []string{}, Files: []string{}}

	err := fs.WalkDir(w.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if w.rules.IgnoreDir(name) {
				w.logger.Info("Ignoring directory %q.", w.display(p))
				return fs.SkipDir
			}
			snap.Dirs = append(snap.Dirs, p)
			return nil
		}

		// Links are not followed; a link to a directory counts as a directory
		if d.Type()&fs.ModeSymlink != 0 {
			if info, statErr := fs.Stat(w.fsys, p); statErr == nil && info.IsDir() {
				if w.rules.IgnoreDir(name) {
					w.logger.Info("Ignoring directory %q.", w.display(p))
					return nil
				}
				snap.Dirs = append(snap.Dirs, p)
				return nil
			}
		}

		if w.rules.IgnoreFile(name) {
			w.logger.Info("Ignoring file %q.", w.display(p))
			return nil
		}
		snap.Files = append(snap.Files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Strings(snap.Dirs)
	sort.Strings(snap.Files)

	return snap, nil
}

func (w *Walker) display(rel string) string {
	if w.label == "" {
		return rel
	}
	return path.Join(filepath.ToSlash(w.label), rel)
}
