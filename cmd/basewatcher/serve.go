package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	githubadapter "github.com/ubq-testing/label-base-rate-watcher/internal/adapter/driven/github"
	sqliteadapter "github.com/ubq-testing/label-base-rate-watcher/internal/adapter/driven/sqlite"
	httphandler "github.com/ubq-testing/label-base-rate-watcher/internal/adapter/driving/http"
	"github.com/ubq-testing/label-base-rate-watcher/internal/application"
	"github.com/ubq-testing/label-base-rate-watcher/internal/config"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// shutdownGrace bounds both the HTTP drain and the wait for background runs.
const shutdownGrace = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the plugin endpoint, the webhook route and the run log API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// 1. Load configuration and the settings used by the webhook route.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"settings_path", cfg.SettingsPath,
		"request_timeout", cfg.RequestTimeout,
		"assistive_pricing", settings.Features.AssistivePricing,
	)

	// 2. Open database and run migrations on the writer connection.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	runStore := sqliteadapter.NewRunRepo(db)

	// 3. GitHub clients: per-request tokens, with the configured token as fallback.
	if cfg.HasGitHubToken() {
		login, err := githubadapter.NewClient(cfg.GitHubToken).AuthenticatedUser(ctx)
		if err != nil {
			return err
		}
		slog.Info("github token validated", "login", login)
	} else {
		slog.Info("no github token configured, only plugin requests carrying a token will be served")
	}
	clients := application.NewGitHubClientProvider(newGitHubClient, cfg.GitHubToken)

	// 4. HTTP handler.
	logger := slog.Default()
	h := httphandler.NewHandler(httphandler.Config{
		Clients: clients,
		Events: func(c driven.GitHubClient) httphandler.EventHandler {
			return application.NewTrigger(c, runStore, logger)
		},
		Runs:           runStore,
		Settings:       settings,
		WebhookSecret:  cfg.WebhookSecret,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The plugin route answers only after its reconciliation finishes.
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 5. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down")

	// 6. Graceful shutdown: drain requests, then background webhook runs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	if err := h.Wait(shutdownCtx); err != nil {
		slog.Warn("background reconciliations still running at exit", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
