// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search and thumbnails over HTTP",
		Long:  "Start the HTTP API used by display clients: /api/v1/search, /api/v1/images/{ref} and /health.",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = c.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	app, err := WireApp(cfg, imageOptional)
	if err != nil {
		return err
	}
	defer app.Close()

	engine, err := app.Engine()
	if err != nil {
		return err
	}
	images, err := app.Images(true)
	if err != nil {
		return err
	}

	models := map[string]server.HealthReporter{"text": app.TextModel}
	if app.ImageModel != nil {
		models["image"] = app.ImageModel
	}

	server.Version = version
	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Services: &server.Services{
			Search: engine,
			Images: images,
			Models: models,
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving artlens on http://%s (modes: %v)\n", cfg.Server.Listen, engine.Modes()); err != nil {
		return err
	}
	slog.Info("server starting", "listen", cfg.Server.Listen, "backend", cfg.Storage.Backend)
	return srv.Start(ctx)
}
