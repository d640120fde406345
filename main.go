package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"maffarchive/archive"
	"maffarchive/browserpool"
	"maffarchive/httpfetch"
	"maffarchive/output"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		rootURL    string
		outputPath string
		jsExec     bool
		maxDepth   int
		poolSize   int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "archive",
		Short:   "Archive a web page and every resource it references into a MAFF file",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rootURL, outputPath, jsExec, maxDepth, poolSize, timeout)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&rootURL, "url", "u", "", "root URL to archive (required)")
	flags.StringVarP(&outputPath, "output", "o", "", "archive basename; .maff is appended (required)")
	flags.BoolVarP(&jsExec, "js", "j", false, "render the root (and iframes) through a headless browser before archiving")
	flags.IntVar(&maxDepth, "max-depth", 3, "recursion limit for CSS @import and HTML iframe chains")
	flags.IntVar(&poolSize, "pool-size", 10, "maximum concurrent headless-browser sessions / in-flight fetches")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "per-request HTTP and per-page-load browser timeout")

	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("output")

	return cmd
}

// run wires together the migration core's collaborators (the plain HTTP
// downloader, the optional headless-browser pool, the migration context)
// and drives a single-URL, single-tab archive operation end to end.
func run(ctx context.Context, rootURL, outputBasename string, jsExec bool, maxDepth, poolSize int, timeout time.Duration) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	archivePath, err := output.ArchivePath(outputBasename)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}

	workDir, err := output.NewWorkDir()
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer output.Cleanup(workDir)

	fetcher := httpfetch.New(timeout, poolSize)

	var browser *browserpool.Pool
	if jsExec {
		browser = browserpool.New(int64(poolSize), timeout)
		defer browser.Close()
	}

	mc := archive.NewMigrationContext(workDir, fetcher, browser, maxDepth, int64(poolSize), logger)

	a := archive.NewArchive(workDir)
	if err := a.AddTab(ctx, mc, rootURL, jsExec); err != nil {
		return fmt.Errorf("archiving %s: %w", rootURL, err)
	}

	if err := a.WriteMAFF(archivePath); err != nil {
		return fmt.Errorf("writing %s: %w", archivePath, err)
	}

	logger.WithField("output", archivePath).Info("archive written")
	fmt.Printf("Generated: %s\n", archivePath)

	return nil
}
