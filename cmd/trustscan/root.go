package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/trustscan/internal/config"
	applog "github.com/nao1215/trustscan/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for trustscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trustscan",
		Short: "Estimate how trustworthy a website is",
		Long: `trustscan scores websites from 0 to 100 and explains the score.

It checks HTTPS and TLS, the domain registration age, the homepage for
business, support and medical-claim signals, and the response headers.
When GEMINI_API_KEY is set an AI judge reviews the same evidence and its
verdict is blended into the score.

Sites that score low are remembered as flagged sites and can be listed
with "trustscan flagged".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .trustscan.yaml in current or home directory)")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewFlaggedCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from .env, the config file, the
// environment and the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.JSONLog, err = cmd.Flags().GetBool("log-json"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger creates the redacting logger written to stderr. base is the
// level used without --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, base slog.Level) *slog.Logger {
	level := base
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return applog.NewSecureLoggerWithLevel(cmd.ErrOrStderr(), level, cfg.JSONLog)
}
