//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/internal/server"
)

var (
	serveListen  string
	serveAPIKey  string
	servePreload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the OpenAI-compatible embeddings API",
	Long: `Serve POST /v1/embeddings and GET /v1/models in the OpenAI format,
plus /health and /metrics. The server runs until interrupted with Ctrl+C.

The embedding model is loaded by the first request unless --preload is set.

Example:
  pgedge-embedserver serve --listen 0.0.0.0:5001 --model all-MiniLM-L6-v2
  OPENEDAI_EMBEDDING_MODEL=BAAI/bge-small-zh-v1.5 pgedge-embedserver serve --preload`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "",
		"address to listen on (default: 127.0.0.1:5001)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "",
		"require this bearer token on /v1 requests")
	serveCmd.Flags().BoolVar(&servePreload, "preload", false,
		"load the embedding model at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveAPIKey != "" {
		cfg.Server.APIKey = serveAPIKey
	}
	if servePreload {
		cfg.Server.Preload = true
	}

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	svc := newService()
	defer func() {
		if err := svc.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to unload embedding model")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Server.Preload {
		if err := svc.Load(ctx); err != nil {
			return fmt.Errorf("failed to preload embedding model: %w", err)
		}
	}

	srv := server.New(svc, server.Options{
		Listen:            cfg.Server.Listen,
		APIKey:            cfg.Server.APIKey,
		AccessLogAll:      cfg.Debug,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
	})

	logging.Info().
		Str("listen", cfg.Server.Listen).
		Str("model", cfg.Embedding.Model).
		Bool("auth", cfg.Server.APIKey != "").
		Bool("preload", cfg.Server.Preload).
		Msg("Starting embedding server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logging.Info().Msg("Embedding server stopped")
	return nil
}
