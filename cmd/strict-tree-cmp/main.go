package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/checksum"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/compare"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/config"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/fetch"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/report"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/s3client"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/verifier"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// errFailed marks a run that already printed its own diagnostics
var errFailed = errors.New("comparison failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		// Usage, config and validation errors fail before a verdict is printed
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fmt.Fprintln(stdout, "Comparison failed.")
		}
		return verifier.ExitDifferent
	}
	return verifier.ExitEqual
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := config.Default()
	var (
		verbosity  int
		digest     string
		configFile string
	)

	rootCmd := &cobra.Command{
		Use:   "strict-tree-cmp <ArchiveURL> <LocalPath>",
		Short: "Verify a published release archive against a local source tree",
		Long: `strict-tree-cmp downloads a release archive, unpacks it into a temporary
workspace and checks that it holds exactly the same directories, files and
file contents as a local tree.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.URL = args[0]
			opts.LocalPath = args[1]
			opts.Verbosity = logging.Verbosity(verbosity)
			opts.Digest = checksum.Algorithm(digest)

			if configFile != "" {
				cfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				if err := cfg.Apply(&opts, func(name string) bool { return cmd.Flags().Changed(name) }); err != nil {
					return fmt.Errorf("config file %q: %w", configFile, err)
				}
			}

			if err := opts.Validate(); err != nil {
				return err
			}
			algo, err := checksum.ParseAlgorithm(string(opts.Digest))
			if err != nil {
				return err
			}
			opts.Digest = algo

			return run(cmd.Context(), opts, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.Flags()
	flags.IntVarP(&verbosity, "verbosity", "v", int(logging.VerbosityNormal), "Output level: 0 silent, 1 progress, 2 per-item confirmations")
	flags.StringArrayVarP(&opts.IgnoreDirs, "ignore-dir", "d", nil, "Directory name to exclude from both trees (multiple allowed)")
	flags.StringArrayVarP(&opts.IgnoreFiles, "ignore-file", "f", nil, "File name to exclude from both trees (multiple allowed)")
	flags.StringVarP(&opts.SaveDownload, "save-download", "s", "", "Copy the downloaded archive to this path before unpacking")
	flags.StringVar(&digest, "digest", string(checksum.DefaultAlgorithm), "Content digest: sha512 or blake3")
	flags.DurationVar(&opts.Timeout, "timeout", fetch.DefaultTimeout, "Download and unpack timeout (0 disables)")
	flags.StringVar(&configFile, "config", "", "Path to YAML config file")
	flags.StringVar(&opts.ReportJSON, "report-json", "", "Path to output result as JSON file")
	flags.StringVar(&opts.Profile, "profile", "", "AWS profile to use for s3:// URLs")
	flags.StringVar(&opts.Region, "region", "", "AWS region for s3:// URLs (uses default if not specified)")

	return rootCmd
}

func run(ctx context.Context, opts config.Options, stdout, stderr io.Writer) error {
	logger := logging.NewLoggerWithWriters(opts.Verbosity, stdout, stderr)
	start := time.Now()

	fetcherOpts := []fetch.Option{fetch.WithAlgorithm(opts.Digest)}
	if opts.Scheme() == "s3" {
		cfg, err := s3client.LoadConfig(ctx, opts.Profile, opts.Region)
		if err != nil {
			return finish(logger, opts, nil, err, start)
		}
		fetcherOpts = append(fetcherOpts, fetch.WithDownloader("s3", &fetch.S3Downloader{Client: s3client.NewClient(cfg)}))
	}

	v := verifier.New(fetch.NewFetcher(logger, fetcherOpts...), logger)
	result, err := v.Run(ctx, opts)
	return finish(logger, opts, result, err, start)
}

// finish prints the verdict, writes the report and converts the outcome into
// the command error
func finish(logger *logging.Logger, opts config.Options, result *compare.Result, runErr error, start time.Time) error {
	duration := time.Since(start)

	if runErr != nil {
		logger.Error("Error: %v", runErr)
	} else if !result.Equal {
		logger.Error("%s", result.Describe())
	}

	if result != nil {
		logger.PrintSummary(result.DirsCompared, result.FilesCompared, result.BytesHashed, duration)
	}

	if opts.ReportJSON != "" {
		r := report.New(opts.URL, opts.LocalPath, string(opts.Digest), result, runErr, duration)
		if err := report.Write(opts.ReportJSON, r); err != nil {
			logger.Error("Error: failed to write report JSON: %v", err)
			runErr = errors.Join(runErr, err)
		}
	}

	if verifier.ExitCode(result, runErr) != verifier.ExitEqual {
		logger.Result("Comparison failed.")
		return errFailed
	}
	logger.Result("Comparison passed!")
	return nil
}
