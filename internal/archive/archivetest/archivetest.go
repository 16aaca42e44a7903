// Package archivetest builds small archives for tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"sort"
	"testing"
)

// Entry is a file in a generated archive. An empty Data with a trailing slash
// in the name produces a directory entry.
type Entry struct {
	Name string
	Data string
}

// Files converts a path to content map into sorted entries
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Data: files[name]})
	}
	return entries
}

// WriteZip writes a zip archive to path
func WriteZip(t testing.TB, path string, entries []Entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Data)); err != nil {
			t.Fatalf("write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// WriteTarGz writes a gzip compressed tar archive to path, starting with a pax
// global header the way git archive does
func WriteTarGz(t testing.TB, path string, entries []Entry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create tar.gz: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		Name:       "pax_global_header",
		PAXRecords: map[string]string{"comment": "0123456789abcdef"},
	}); err != nil {
		t.Fatalf("write global header: %v", err)
	}

	for _, e := range entries {
		if len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' {
			if err := tw.WriteHeader(&tar.Header{Typeflag: tar.TypeDir, Name: e.Name, Mode: 0o755}); err != nil {
				t.Fatalf("write dir header %s: %v", e.Name, err)
			}
			continue
		}
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     e.Name,
			Mode:     0o644,
			Size:     int64(len(e.Data)),
		}); err != nil {
			t.Fatalf("write header %s: %v", e.Name, err)
		}
		if _, err := tw.Write([]byte(e.Data)); err != nil {
			t.Fatalf("write tar entry %s: %v", e.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
}
