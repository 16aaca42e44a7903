// Package report writes the machine readable outcome of a run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/compare"
)

// Report represents the result of one comparison run
type Report struct {
	Equal    bool      `json:"equal"`
	Source   string    `json:"source"`
	Local    string    `json:"local"`
	Digest   string    `json:"digest"`
	Mismatch *Mismatch `json:"mismatch,omitempty"`
	Summary  Summary   `json:"summary"`
	Error    string    `json:"error,omitempty"`
}

// Mismatch describes the first difference found
type Mismatch struct {
	Kind    string   `json:"kind"` // "directory_structure", "directory_name", "file_count", "file_name", "content"
	Message string   `json:"message"`
	OnlyInA []string `json:"only_in_archive,omitempty"`
	OnlyInB []string `json:"only_in_local,omitempty"`
	NameA   string   `json:"archive_name,omitempty"`
	NameB   string   `json:"local_name,omitempty"`
	Path    string   `json:"path,omitempty"`
	DigestA string   `json:"archive_digest,omitempty"`
	DigestB string   `json:"local_digest,omitempty"`
}

type Summary struct {
	Directories int     `json:"directories"`
	Files       int     `json:"files"`
	BytesHashed int64   `json:"bytes_hashed"`
	DurationSec float64 `json:"duration_seconds"`
}

// New builds a report from a comparison result and the run error, either of
// which may be nil
func New(source, local, digest string, result *compare.Result, runErr error, duration time.Duration) Report {
	r := Report{
		Source: source,
		Local:  local,
		Digest: digest,
		Summary: Summary{
			DurationSec: duration.Seconds(),
		},
	}

	if runErr != nil {
		r.Error = runErr.Error()
	}

	if result != nil {
		r.Summary.Directories = result.DirsCompared
		r.Summary.Files = result.FilesCompared
		r.Summary.BytesHashed = result.BytesHashed

		if result.Equal {
			r.Equal = runErr == nil
		} else {
			r.Mismatch = &Mismatch{
				Kind:    string(result.Kind),
				Message: result.Describe(),
				OnlyInA: result.OnlyInA,
				OnlyInB: result.OnlyInB,
				NameA:   result.NameA,
				NameB:   result.NameB,
				Path:    result.Path,
				DigestA: result.DigestA,
				DigestB: result.DigestB,
			}
		}
	}

	return r
}

// Write stores the report as indented JSON
func Write(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
