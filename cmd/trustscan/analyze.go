package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/model"
	"github.com/nao1215/trustscan/internal/pipeline"
	"github.com/nao1215/trustscan/internal/report"
	"github.com/nao1215/trustscan/internal/server"
	"github.com/spf13/cobra"
)

// analyzeOptions are the per-request flags of the analyze command.
type analyzeOptions struct {
	deep    bool
	force   bool
	timeout time.Duration
}

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url>...",
		Short: "Score one or more websites",
		Long: `Analyze fetches each website, collects trust evidence and prints a 0-100
score with an explanation of every signal.

A URL without a scheme is treated as https. Results are cached, so running
the same URL again returns the stored analysis until it expires.

Examples:
  # Analyze a single site
  trustscan analyze example.com

  # Crawl about, contact and policy pages as well
  trustscan analyze --deep https://shop.example.com

  # Analyze several sites, four at a time, as JSON lines
  trustscan analyze --json -b 4 a.example.com b.example.com c.example.com

  # Ignore the cache and write a Markdown report to a file
  trustscan analyze -f -m -o reports/example.md example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().BoolP("deep", "d", false,
		"Also crawl trust pages such as about, contact and privacy policy")
	cmd.Flags().BoolP("force", "f", false,
		"Bypass the cache and analyze again")
	cmd.Flags().DurationP("timeout", "t", 0,
		"End-to-end deadline per site (default 20s, or 60s with --deep; clamped to 1s..60s)")
	cmd.Flags().IntP("batch", "b", 0,
		"Number of concurrent analyses (default from configuration)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file path (creates directories if needed)")

	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var opts analyzeOptions
	if opts.deep, err = flags.GetBool("deep"); err != nil {
		return err
	}
	if opts.force, err = flags.GetBool("force"); err != nil {
		return err
	}
	if opts.timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	batch, err := flags.GetInt("batch")
	if err != nil {
		return err
	}
	if batch > 0 {
		cfg.BatchSize = batch
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if asJSON && asMarkdown {
		return config.ErrConflictingReportFormats
	}

	logger := newLogger(cmd, cfg, slog.LevelWarn)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeStore, err := analyzer.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	out, closeOut, err := openOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	var w report.Writer
	switch {
	case asJSON && len(args) == 1:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case asJSON:
		w = report.NewJSONWriter(out)
	case asMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	return analyzeTargets(ctx, engine, args, opts, cfg.BatchSize, w, cmd.ErrOrStderr(), logger)
}

// openOutput returns the report destination: the file at path, created
// with owner-only permissions, or the command's stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// analyzeTargets runs every target through a and writes the successful
// results to w in argument order. Failures are reported on errOut; the
// returned error summarizes them.
func analyzeTargets(
	ctx context.Context,
	a server.Analyzer,
	targets []string,
	opts analyzeOptions,
	concurrency int,
	w report.Writer,
	errOut io.Writer,
	logger *slog.Logger,
) error {
	bp := pipeline.NewBatchProcessor(
		func(ctx context.Context, target string) (*model.AnalysisResult, error) {
			return a.Analyze(ctx, analyzer.Request{
				URL:     target,
				Force:   opts.force,
				Timeout: opts.timeout,
				Deep:    opts.deep,
			})
		},
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(logger),
	)

	results, batchErr := bp.ProcessBatch(ctx, targets)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(errOut, "Analysis error for %s: %v\n", r.Target, r.Err)
			continue
		}
		if r.Result == nil {
			// Never started because the batch was cancelled.
			continue
		}
		if _, err := w.Write(r.Result); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", r.Target, err)
		}
	}

	if batchErr != nil {
		return fmt.Errorf("analysis interrupted: %w", batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(targets))
	}
	return nil
}
