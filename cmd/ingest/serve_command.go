package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-ingest/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-ingest/internal/middleware"
)

func newServeCommand(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			ctx := cmd.Context()
			cfg := app.cfg

			svc, err := app.newProducer(ctx)
			if err != nil {
				return err
			}

			limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
			go limiter.RunCleanup(ctx)

			handler := httpserver.NewRouter(svc, httpserver.Options{
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				APIKeys:        cfg.Auth.APIKeys,
				Limiter:        limiter,
				CORSOrigins:    cfg.Server.CORSOrigins,
				Checkers:       app.checkers,
				Logger:         app.logger.With("component", "api"),
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           handler,
				ReadHeaderTimeout: 15 * time.Second,
				// upload besar butuh waktu baca lebih lama
				ReadTimeout:  5 * time.Minute,
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  60 * time.Second,
			}
			return serveHTTP(ctx, srv, app.logger)
		},
	}
}
