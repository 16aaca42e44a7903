package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/s3client"
)

// Downloader writes the resource behind u into dst
type Downloader interface {
	Download(ctx context.Context, u *url.URL, dst *os.File) (int64, error)
}

// StatusError reports a non-2xx HTTP response
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// HTTPDownloader downloads over http and https with a single blocking GET
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
}

func (d *HTTPDownloader) Download(ctx context.Context, u *url.URL, dst *os.File) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return n, fmt.Errorf("read response body: %w", err)
	}
	return n, nil
}

// S3Getter is the part of s3client.Client used for downloads
type S3Getter interface {
	Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}

// S3Downloader downloads s3://bucket/key objects
type S3Downloader struct {
	Client S3Getter
}

func (d *S3Downloader) Download(ctx context.Context, u *url.URL, dst *os.File) (int64, error) {
	// Rebuilt from the decoded path so keys with escaped characters survive
	bucket, key, err := s3client.ParseS3URI("s3://" + u.Host + u.Path)
	if err != nil {
		return 0, err
	}
	return d.Client.Download(ctx, bucket, key, dst)
}

// FileDownloader copies a local archive referenced by a file:// URL
type FileDownloader struct{}

func (FileDownloader) Download(ctx context.Context, u *url.URL, dst *os.File) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	src, err := os.Open(u.Path)
	if err != nil {
		return 0, fmt.Errorf("open local archive: %w", err)
	}
	defer src.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("copy local archive: %w", err)
	}
	return n, nil
}
