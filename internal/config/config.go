// Package config holds the run options and loads them from flags and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/checksum"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/fetch"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/walker"
)

// SupportedSchemes lists the URL schemes an archive can be fetched from
var SupportedSchemes = []string{"http", "https", "s3", "file"}

// Options is everything a single comparison run needs
type Options struct {
	URL       string
	LocalPath string

	Verbosity    logging.Verbosity
	IgnoreDirs   []string
	IgnoreFiles  []string
	SaveDownload string
	Digest       checksum.Algorithm
	Timeout      time.Duration
	ReportJSON   string

	// AWS settings, only used for s3:// URLs
	Profile string
	Region  string
}

// Default returns options with every default applied
func Default() Options {
	return Options{
		Verbosity: logging.VerbosityNormal,
		Digest:    checksum.DefaultAlgorithm,
		Timeout:   fetch.DefaultTimeout,
	}
}

// IgnoreRules returns the walker rules built from the ignore lists
func (o Options) IgnoreRules() walker.IgnoreRules {
	return walker.IgnoreRules{Dirs: o.IgnoreDirs, Files: o.IgnoreFiles}
}

// Scheme returns the lower-cased URL scheme, or "" if the URL does not parse
func (o Options) Scheme() string {
	u, err := url.Parse(o.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Validate checks options before any network or filesystem work starts
func (o Options) Validate() error {
	var errs []error

	if !o.Verbosity.Valid() {
		errs = append(errs, fmt.Errorf("verbosity must be 0, 1 or 2, got %d", o.Verbosity))
	}

	if err := validateURL(o.URL); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(o.LocalPath) == "" {
		errs = append(errs, errors.New("local path must not be empty"))
	}

	if _, err := checksum.ParseAlgorithm(string(o.Digest)); err != nil {
		errs = append(errs, err)
	}

	if o.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", o.Timeout))
	}

	if err := o.IgnoreRules().Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("archive URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid archive URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range SupportedSchemes {
		if scheme == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported URL scheme %q (supported: %s)", u.Scheme, strings.Join(SupportedSchemes, ", "))
}
