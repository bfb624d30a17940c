package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/api"
	"github.com/erazemk/gametracker/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBackend(cfg, true)
			if err != nil {
				return err
			}
			defer b.Close()

			deps := api.Deps{
				Games:          b.games,
				Books:          b.books,
				TokenTTL:       cfg.TokenTTL(),
				DefaultLimit:   cfg.Limits.Default,
				SingleUserName: cfg.Auth.SingleUserName,
				AppName:        cfg.AppName,
				Syncer:         b.syncer,
			}
			if cfg.Auth.MultiUser {
				secret, err := b.jwtSecret(runCtx)
				if err != nil {
					return err
				}
				deps.DB = b.db
				deps.JWTSecret = secret
			}

			if b.syncer != nil {
				if cfg.Sync.PullOnStart {
					for _, kind := range b.syncer.Kinds() {
						if err := b.syncer.Pull(runCtx, kind); err != nil {
							slog.Warn("initial github pull failed", "kind", kind, "error", err)
						}
					}
				}
				b.syncer.Start(runCtx)
				slog.Info("github sync enabled", "repo", b.syncer.Repo(), "push_on_save", cfg.Sync.PushOnSave)
			}

			if cfg.Storage.WatchFiles {
				for _, f := range b.files {
					if err := f.Watch(runCtx); err != nil {
						return err
					}
				}
			}

			apiRouter := api.NewRouter(deps)
			webRouter, err := web.NewRouter(cfg.AppName, cfg.Auth.MultiUser, b.stores()...)
			if err != nil {
				return err
			}

			// API routes take priority, web routes handle the rest.
			mux := http.NewServeMux()
			mux.Handle("/api/", apiRouter)
			mux.Handle("/health", apiRouter)
			mux.Handle("/", webRouter)

			handler := api.LoggingMiddleware(api.SecurityHeaders(api.CORS(cfg.Server.CORSOrigin)(mux)))

			server := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			go func() {
				<-runCtx.Done()
				slog.Info("shutdown signal received")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("server forced to shutdown", "error", err)
				}
			}()

			slog.Info("server started",
				"addr", cfg.Addr(),
				"database", b.db != nil,
				"multi_user", cfg.Auth.MultiUser,
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			slog.Info("server stopped, closing storage")
			return nil
		},
	}
}
