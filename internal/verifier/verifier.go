// Package verifier runs one archive-versus-local-tree check from download to cleanup.
package verifier

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/strict-tree-cmp/internal/compare"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/config"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/fetch"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/walker"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/workspace"
)

const (
	ExitEqual     = 0
	ExitDifferent = 1
)

// Verifier compares a downloaded release archive against a local tree
type Verifier struct {
	fetcher *fetch.Fetcher
	logger  *logging.Logger
}

// New creates a verifier
func New(fetcher *fetch.Fetcher, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Verifier{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Run fetches opts.URL into a temporary workspace, compares the extracted
// tree with opts.LocalPath and removes the workspace whatever the outcome.
// A returned error means the run could not reach a verdict.
func (v *Verifier) Run(ctx context.Context, opts config.Options) (result *compare.Result, err error) {
	local, err := walker.NewWalker(opts.LocalPath, opts.IgnoreRules(), v.logger)
	if err != nil {
		return nil, fmt.Errorf("local path %q: %w", opts.LocalPath, err)
	}

	ws, err := workspace.New(workspace.DefaultPrefix)
	if err != nil {
		return nil, err
	}
	defer func() {
		v.logger.Debug("Removing workspace %q ...", ws.Dir())
		if cerr := ws.Close(); cerr != nil {
			if err != nil {
				// The run already failed; keep its error and report this one here
				v.logger.Error("Error: %v", cerr)
				return
			}
			result, err = nil, cerr
		}
	}()

	fetchCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	root, err := v.fetcher.FetchAndUnpack(fetchCtx, opts.URL, ws, opts.SaveDownload)
	if err != nil {
		return nil, err
	}

	extracted, err := walker.NewWalker(root, opts.IgnoreRules(), v.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrUnexpectedLayout, err)
	}

	return compare.Compare(ctx,
		compare.Tree{Label: extracted.Label(), FS: extracted.FS()},
		compare.Tree{Label: local.Label(), FS: local.FS()},
		compare.Options{
			Ignore:    opts.IgnoreRules(),
			Algorithm: opts.Digest,
			Logger:    v.logger,
		})
}

// ExitCode maps a run outcome to the process exit status
func ExitCode(result *compare.Result, err error) int {
	if err != nil || result == nil || !result.Equal {
		return ExitDifferent
	}
	return ExitEqual
}
