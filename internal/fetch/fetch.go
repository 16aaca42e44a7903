// Package fetch downloads a release archive into a workspace and unpacks it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/archive"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/checksum"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/workspace"
)

// ErrUnexpectedLayout is returned when extraction does not produce exactly one top level entry
var ErrUnexpectedLayout = errors.New("unexpected archive layout")

// DefaultTimeout is the default deadline for downloading and unpacking one archive.
// It is applied through the context, so the HTTP client itself has no timeout.
const DefaultTimeout = 10 * time.Minute

// Fetcher downloads and unpacks archives
type Fetcher struct {
	downloaders map[string]Downloader
	algo        checksum.Algorithm
	logger      *logging.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithDownloader registers d for a URL scheme, replacing any existing one
func WithDownloader(scheme string, d Downloader) Option {
	return func(f *Fetcher) {
		f.downloaders[strings.ToLower(scheme)] = d
	}
}

// WithHTTPClient sets the client used for http and https URLs
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		d := &HTTPDownloader{Client: client, UserAgent: "strict-tree-cmp"}
		f.downloaders["http"] = d
		f.downloaders["https"] = d
	}
}

// WithAlgorithm sets the digest algorithm used to fingerprint the downloaded archive
func WithAlgorithm(algo checksum.Algorithm) Option {
	return func(f *Fetcher) {
		f.algo = algo
	}
}

// NewFetcher creates a fetcher supporting http, https and file URLs
func NewFetcher(logger *logging.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	f := &Fetcher{
		downloaders: map[string]Downloader{},
		algo:        checksum.DefaultAlgorithm,
		logger:      logger,
	}
	WithHTTPClient(&http.Client{})(f)
	f.downloaders["file"] = FileDownloader{}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Supports reports whether a downloader is registered for scheme
func (f *Fetcher) Supports(scheme string) bool {
	_, ok := f.downloaders[strings.ToLower(scheme)]
	return ok
}

// ArchiveName derives the local file name from the final URL path segment
func ArchiveName(u *url.URL) (string, error) {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return "", fmt.Errorf("cannot derive archive file name from %q", u.Redacted())
	}
	name := path.Base(p)
	if name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("cannot derive archive file name from %q", u.Redacted())
	}
	return name, nil
}

// FetchAndUnpack downloads rawURL into ws, optionally copies the archive to saveTo,
// unpacks it and returns the path of the single extracted top level entry.
func (f *Fetcher) FetchAndUnpack(ctx context.Context, rawURL string, ws *workspace.Workspace, saveTo string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	d, ok := f.downloaders[strings.ToLower(u.Scheme)]
	if !ok {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	name, err := ArchiveName(u)
	if err != nil {
		return "", err
	}
	archivePath := ws.Path(name)

	f.logger.Info("Downloading %q ...", u.Redacted())
	n, err := download(ctx, d, u, archivePath)
	if err != nil {
		return "", err
	}
	f.logger.Info("Download complete! (%d bytes)", n)

	if f.logger.Enabled(logging.VerbosityUltra) {
		digest, err := checksum.CalculateFileDigest(archivePath, f.algo)
		if err != nil {
			return "", fmt.Errorf("hash archive: %w", err)
		}
		f.logger.Debug("Archive %s digest: %s", f.algo, digest)
	}

	if saveTo != "" {
		if err := copyFile(archivePath, saveTo); err != nil {
			return "", fmt.Errorf("save download: %w", err)
		}
		f.logger.Info("Saved download to %q.", saveTo)
	}

	f.logger.Info("Unpacking ...")
	format, err := archive.Unpack(ctx, archivePath, ws.Dir())
	if err != nil {
		return "", err
	}
	f.logger.Info("Unpacking complete! (%s)", format)

	return extractedRoot(ws, name)
}

func download(ctx context.Context, d Downloader, u *url.URL, archivePath string) (int64, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("create archive file: %w", err)
	}
	n, err := d.Download(ctx, u, out)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("download: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close archive file: %w", err)
	}
	return n, nil
}

// extractedRoot enforces the archive-plus-one-entry layout
func extractedRoot(ws *workspace.Workspace, archiveName string) (string, error) {
	entries, err := ws.Entries()
	if err != nil {
		return "", err
	}
	if len(entries) != 2 {
		return "", fmt.Errorf("%w: expected the archive and exactly one extracted entry, found %d entries %q",
			ErrUnexpectedLayout, len(entries), entries)
	}

	root := ""
	found := false
	for _, e := range entries {
		if e == archiveName {
			found = true
			continue
		}
		root = e
	}
	if !found {
		return "", fmt.Errorf("%w: archive file %q is no longer in the workspace", ErrUnexpectedLayout, archiveName)
	}
	return ws.Path(root), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
