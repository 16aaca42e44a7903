// Package compare checks that two trees have identical directory sets, file sets
// and file contents.
//
// Names are always compared before contents so that a structural divergence
// (added, removed or renamed entries) is reported separately from a content
// divergence (same name, different bytes).
package compare

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/checksum"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/walker"
)

// MismatchKind classifies why two trees differ
type MismatchKind string

const (
	MismatchNone               MismatchKind = ""
	MismatchDirectoryStructure MismatchKind = "directory_structure"
	MismatchDirectoryName      MismatchKind = "directory_name"
	MismatchFileCount          MismatchKind = "file_count"
	MismatchFileName           MismatchKind = "file_name"
	MismatchContent            MismatchKind = "content"
)

// Tree is one side of a comparison
type Tree struct {
	Label string // shown in messages, usually the root path
	FS    fs.FS
}

// Options controls a comparison
type Options struct {
	Ignore    walker.IgnoreRules
	Algorithm checksum.Algorithm
	Logger    *logging.Logger
}

// Result is the outcome of one comparison
type Result struct {
	Equal bool
	Kind  MismatchKind

	// Entries present on only one side (structure and count mismatches)
	OnlyInA []string
	OnlyInB []string

	// First differing pair at the same sorted position (name mismatches)
	NameA string
	NameB string

	// Content mismatch
	Path    string
	DigestA string
	DigestB string

	DirsCompared  int
	FilesCompared int
	BytesHashed   int64
}

// Describe renders the mismatch as a human readable diagnostic
func (r *Result) Describe() string {
	switch r.Kind {
	case MismatchNone:
		return "Trees are equal."
	case MismatchDirectoryStructure:
		return fmt.Sprintf("Directory structure is not equal (%d only in first tree, %d only in second tree).", len(r.OnlyInA), len(r.OnlyInB))
	case MismatchDirectoryName:
		return fmt.Sprintf("Directory name not equal: %q in first tree, %q in second tree.", r.NameA, r.NameB)
	case MismatchFileCount:
		return fmt.Sprintf("File count different (%d only in first tree, %d only in second tree).", len(r.OnlyInA), len(r.OnlyInB))
	case MismatchFileName:
		return fmt.Sprintf("File name not equal: %q in first tree, %q in second tree.", r.NameA, r.NameB)
	case MismatchContent:
		return fmt.Sprintf("Hash mismatch for %q: %s in first tree, %s in second tree.", r.Path, r.DigestA, r.DigestB)
	default:
		return fmt.Sprintf("unknown mismatch kind %q", r.Kind)
	}
}

// Compare walks both trees with the same ignore rules and compares them.
// A non-nil error means the comparison could not be completed (I/O failure or
// cancellation); differences between the trees are reported through the Result.
func Compare(ctx context.Context, a, b Tree, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	algo := opts.Algorithm
	if algo == "" {
		algo = checksum.DefaultAlgorithm
	}

	logger.Info("Comparing %q to %q ...", a.Label, b.Label)

	snapA, err := walker.NewFSWalker(a.FS, a.Label, opts.Ignore, logger).Walk()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", a.Label, err)
	}
	snapB, err := walker.NewFSWalker(b.FS, b.Label, opts.Ignore, logger).Walk()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.Label, err)
	}

	result := &Result{}

	// Directories: existence only
	if len(snapA.Dirs) != len(snapB.Dirs) {
		result.Kind = MismatchDirectoryStructure
		result.OnlyInA, result.OnlyInB = DiffSorted(snapA.Dirs, snapB.Dirs)
		for _, d := range result.OnlyInA {
			logger.Info("First tree directory %q has no match in second tree.", d)
		}
		for _, d := range result.OnlyInB {
			logger.Info("Second tree directory %q has no match in first tree.", d)
		}
		logListingDiff(logger, snapA.Dirs, snapB.Dirs, a.Label, b.Label)
		return result, nil
	}
	for i := range snapA.Dirs {
		if snapA.Dirs[i] != snapB.Dirs[i] {
			result.Kind = MismatchDirectoryName
			result.NameA, result.NameB = snapA.Dirs[i], snapB.Dirs[i]
			result.OnlyInA, result.OnlyInB = DiffSorted(snapA.Dirs, snapB.Dirs)
			logListingDiff(logger, snapA.Dirs, snapB.Dirs, a.Label, b.Label)
			return result, nil
		}
		result.DirsCompared++
		logger.Debug("Comparison passed: %q and %q.", snapA.Dirs[i], snapB.Dirs[i])
	}

	// Files: names first, then contents
	if len(snapA.Files) != len(snapB.Files) {
		result.Kind = MismatchFileCount
		result.OnlyInA, result.OnlyInB = DiffSorted(snapA.Files, snapB.Files)
		for _, f := range result.OnlyInA {
			logger.Error("First tree file %q has no match in second tree.", f)
		}
		for _, f := range result.OnlyInB {
			logger.Error("Second tree file %q has no match in first tree.", f)
		}
		logListingDiff(logger, snapA.Files, snapB.Files, a.Label, b.Label)
		return result, nil
	}
	for i := range snapA.Files {
		if snapA.Files[i] != snapB.Files[i] {
			result.Kind = MismatchFileName
			result.NameA, result.NameB = snapA.Files[i], snapB.Files[i]
			result.OnlyInA, result.OnlyInB = DiffSorted(snapA.Files, snapB.Files)
			logListingDiff(logger, snapA.Files, snapB.Files, a.Label, b.Label)
			return result, nil
		}
	}

	for _, name := range snapA.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		digestA, size, err := fileDigest(a.FS, name, algo)
		if err != nil {
			return nil, fmt.Errorf("hash %s in %s: %w", name, a.Label, err)
		}
		digestB, _, err := fileDigest(b.FS, name, algo)
		if err != nil {
			return nil, fmt.Errorf("hash %s in %s: %w", name, b.Label, err)
		}
		result.BytesHashed += size

		if digestA != digestB {
			result.Kind = MismatchContent
			result.Path = name
			result.DigestA, result.DigestB = digestA, digestB
			return result, nil
		}
		result.FilesCompared++
		logger.Debug("Comparison passed: %q and %q [%s].", name, name, digestA)
	}

	result.Equal = true
	return result, nil
}

// DiffSorted returns the entries only present in a and only present in b.
// Both inputs must be sorted.
func DiffSorted(a, b []string) (onlyA, onlyB []string) {
	onlyA, onlyB = []string{}, []string{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch strings.Compare(a[i], b[j]) {
		case 0:
			i++
			j++
		case -1:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return onlyA, onlyB
}

func fileDigest(fsys fs.FS, name string, algo checksum.Algorithm) (string, int64, error) {
	digest, err := checksum.FileDigest(fsys, name, algo)
	if err != nil {
		return "", 0, err
	}
	var size int64
	if info, err := fs.Stat(fsys, name); err == nil {
		size = info.Size()
	}
	return digest, size, nil
}
