package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/ratelimit"
	"github.com/nao1215/trustscan/internal/server"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests may finish after a
// shutdown signal.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trust analysis HTTP API",
		Long: `Serve starts the HTTP API:

  GET  /healthz              liveness probe
  POST /analyze              {"url": "...", "force": false, "timeoutMs": 20000}
  GET  /flagged?q=&page=&pageSize=
  GET  /flagged/{hostname}

Requests are rate limited per client address. The server stops gracefully
on SIGINT or SIGTERM.

Examples:
  # Listen on the configured address (default :8080)
  trustscan serve

  # Listen on a specific address with SQLite persistence
  TRUSTSCAN_STORAGE=sqlite trustscan serve -l 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		"Listen address (default from configuration, :8080)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddr = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg, slog.LevelInfo)

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

	limiter := ratelimit.New(ratelimit.ScopesFromConfig(cfg.RateLimits), ratelimit.WithLogger(logger))
	srv := server.New(engine, engine.Flagged(),
		server.WithLogger(logger),
		server.WithRateLimiter(limiter),
	)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	return serve(ctx, srv.HTTPServer(cfg.ListenAddr), ln, logger)
}

// serve runs hs on ln until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, hs *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", ln.Addr().String())
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http api")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
