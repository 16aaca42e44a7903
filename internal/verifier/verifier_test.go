package verifier

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/archive/archivetest"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/compare"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/config"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/fetch"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/workspace"
)

var releaseFiles = map[string]string{
	"proj-1.0/a/x.txt": "hello",
	"proj-1.0/a/y.txt": "world",
}

// isolateTemp points the temporary directory at a fresh location so leftover
// workspaces can be detected
func isolateTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	return dir
}

func leftoverWorkspaces(t *testing.T, tmp string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(tmp, workspace.DefaultPrefix+"*"))
	require.NoError(t, err)
	return matches
}

func writeLocalTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	}
	return root
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proj-1.0.tar.gz")
	archivetest.WriteTarGz(t, path, archivetest.Files(releaseFiles))
	return path
}

func options(url, local string) config.Options {
	opts := config.Default()
	opts.URL = url
	opts.LocalPath = local
	return opts
}

func TestRun(t *testing.T) {
	archivePath := writeArchive(t)

	tests := []struct {
		name     string
		local    map[string]string
		wantKind compare.MismatchKind
		wantExit int
	}{
		{
			name:     "identical tree",
			local:    map[string]string{"a/x.txt": "hello", "a/y.txt": "world"},
			wantKind: compare.MismatchNone,
			wantExit: ExitEqual,
		},
		{
			name:     "changed content",
			local:    map[string]string{"a/x.txt": "hello", "a/y.txt": "World"},
			wantKind: compare.MismatchContent,
			wantExit: ExitDifferent,
		},
		{
			name:     "missing file",
			local:    map[string]string{"a/x.txt": "hello"},
			wantKind: compare.MismatchFileCount,
			wantExit: ExitDifferent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := writeLocalTree(t, tt.local)
			tmp := isolateTemp(t)

			v := New(fetch.NewFetcher(nil), nil)
			result, err := v.Run(context.Background(), options("file://"+filepath.ToSlash(archivePath), local))
			require.NoError(t, err)

			assert.Equal(t, tt.wantKind, result.Kind)
			assert.Equal(t, tt.wantExit, ExitCode(result, err))
			assert.Empty(t, leftoverWorkspaces(t, tmp))
		})
	}
}

func TestRunIgnoreRules(t *testing.T) {
	archivePath := writeArchive(t)
	local := writeLocalTree(t, map[string]string{
		"a/x.txt":    "hello",
		"a/y.txt":    "world",
		".git/HEAD":  "ref: refs/heads/main",
		".gitignore": "*.o",
	})

	opts := options("file://"+filepath.ToSlash(archivePath), local)
	opts.IgnoreDirs = []string{".git"}
	opts.IgnoreFiles = []string{".gitignore"}

	result, err := New(fetch.NewFetcher(nil), nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, result.Equal, result.Describe())
}

func TestRunCleansUpAfterHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	local := writeLocalTree(t, map[string]string{"a/x.txt": "hello"})
	tmp := isolateTemp(t)

	var out bytes.Buffer
	logger := logging.NewLoggerWithWriters(logging.VerbosityNormal, &out, &out)
	v := New(fetch.NewFetcher(logger, fetch.WithHTTPClient(srv.Client())), logger)

	result, err := v.Run(context.Background(), options(srv.URL+"/v1.0.zip", local))
	require.Error(t, err)
	assert.Nil(t, result)

	var statusErr *fetch.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, ExitDifferent, ExitCode(result, err))
	assert.Empty(t, leftoverWorkspaces(t, tmp))
}

func TestRunLayoutError(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "flat.zip")
	archivetest.WriteZip(t, archivePath, archivetest.Files(map[string]string{
		"a.txt": "a",
		"b.txt": "b",
	}))
	local := writeLocalTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	tmp := isolateTemp(t)

	_, err := New(fetch.NewFetcher(nil), nil).Run(context.Background(), options("file://"+filepath.ToSlash(archivePath), local))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrUnexpectedLayout))
	assert.Empty(t, leftoverWorkspaces(t, tmp))
}

func TestRunSingleFileArchive(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "single.zip")
	archivetest.WriteZip(t, archivePath, archivetest.Files(map[string]string{"only.txt": "x"}))
	local := writeLocalTree(t, map[string]string{"only.txt": "x"})

	_, err := New(fetch.NewFetcher(nil), nil).Run(context.Background(), options("file://"+filepath.ToSlash(archivePath), local))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrUnexpectedLayout))
}

func TestRunMissingLocalPath(t *testing.T) {
	tmp := isolateTemp(t)

	_, err := New(fetch.NewFetcher(nil), nil).Run(context.Background(), options("file:///nonexistent.zip", filepath.Join(tmp, "missing")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local path")
	assert.Empty(t, leftoverWorkspaces(t, tmp))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		result *compare.Result
		err    error
		want   int
	}{
		{"equal", &compare.Result{Equal: true}, nil, ExitEqual},
		{"different", &compare.Result{Kind: compare.MismatchContent}, nil, ExitDifferent},
		{"error", nil, errors.New("boom"), ExitDifferent},
		{"equal but cleanup failed", &compare.Result{Equal: true}, errors.New("remove workspace"), ExitDifferent},
		{"no result", nil, nil, ExitDifferent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.result, tt.err))
		})
	}
}
