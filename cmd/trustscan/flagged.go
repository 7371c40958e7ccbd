package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/flagged"
	"github.com/nao1215/trustscan/internal/model"
	"github.com/nao1215/trustscan/internal/report"
	"github.com/nao1215/trustscan/internal/server"
	"github.com/spf13/cobra"
)

// NewFlaggedCmd creates the flagged command.
func NewFlaggedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flagged [query]",
		Short: "List websites flagged as high risk",
		Long: `Flagged lists the websites whose analysis scored as high risk, most
recently observed first. The optional query matches the hostname, URL,
summary and issues, case-insensitively.

Flagged sites only survive between runs with sqlite or postgres storage.

Examples:
  # Show the 20 most recent flagged sites
  trustscan flagged

  # Search for sites mentioning "miracle"
  trustscan flagged miracle

  # Export every flagged site to a spreadsheet
  TRUSTSCAN_STORAGE=sqlite trustscan flagged --xlsx flagged.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFlaggedCmd,
	}

	cmd.Flags().IntP("limit", "l", flagged.DefaultPageSize,
		fmt.Sprintf("Maximum number of sites to list (at most %d)", flagged.MaxPageSize))
	cmd.Flags().Int("offset", 0, "Number of matching sites to skip")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().String("xlsx", "", "Export all matching sites to an Excel file")

	return cmd
}

func runFlaggedCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	offset, err := flags.GetInt("offset")
	if err != nil {
		return err
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	xlsxPath, err := flags.GetString("xlsx")
	if err != nil {
		return err
	}

	var text string
	if len(args) == 1 {
		text = args[0]
	}

	logger := newLogger(cmd, cfg, slog.LevelWarn)
	ctx := cmd.Context()

	engine, closeStore, err := analyzer.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	if cfg.Storage == config.StorageMemory {
		fmt.Fprintln(cmd.ErrOrStderr(),
			"Note: storage is memory; flagged sites from earlier runs are not available. Set TRUSTSCAN_STORAGE=sqlite to keep them.")
	}

	if xlsxPath != "" {
		records, err := collectFlagged(ctx, engine.Flagged(), text)
		if err != nil {
			return err
		}
		if err := exportFlaggedXLSX(xlsxPath, records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d flagged sites to %s\n", len(records), xlsxPath)
		return nil
	}

	page, err := engine.Flagged().Search(ctx, model.FlaggedQuery{Text: text, Limit: limit, Offset: offset})
	if err != nil {
		return fmt.Errorf("failed to search flagged sites: %w", err)
	}
	return writeFlagged(cmd.OutOrStdout(), page, asJSON, cfg.Verbose)
}

// writeFlagged renders a page of flagged sites.
func writeFlagged(out io.Writer, page model.FlaggedPage, asJSON, verbose bool) error {
	var w report.Writer
	if asJSON {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	} else {
		w = report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
	_, err := w.WriteFlagged(page)
	return err
}

// collectFlagged pages through every record matching text.
func collectFlagged(ctx context.Context, r server.FlaggedReader, text string) ([]model.FlaggedSiteRecord, error) {
	var all []model.FlaggedSiteRecord
	for {
		page, err := r.Search(ctx, model.FlaggedQuery{
			Text:   text,
			Limit:  flagged.MaxPageSize,
			Offset: len(all),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search flagged sites: %w", err)
		}
		all = append(all, page.Items...)
		if len(page.Items) == 0 || len(all) >= page.Total {
			return all, nil
		}
	}
}

// exportFlaggedXLSX writes records to a new spreadsheet at path.
func exportFlaggedXLSX(path string, records []model.FlaggedSiteRecord) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := report.WriteFlaggedXLSX(f, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return f.Close()
}
