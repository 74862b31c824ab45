//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-embedserver.
package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-embedserver/internal/config"
	"github.com/pgEdge/pgedge-embedserver/internal/embeddings"
	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/pkg/version"
)

var (
	// Global flags
	cfgFile  string
	model    string
	device   string
	logLevel string
	debug    bool

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-embedserver",
		Short: "OpenAI-compatible embeddings server",
		Long: `pgedge-embedserver computes text embeddings with a sentence-transformers
model run in process, or with jina-embeddings and m2-bert models served by
their providers, and returns them in the OpenAI embeddings format.

The model is chosen by name and loaded on first use. Embeddings can be
served over HTTP, printed for ad-hoc inputs, or stored in PostgreSQL with
pgvector.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-embedserver.yaml)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "",
		"embedding model name or local model directory")
	rootCmd.PersistentFlags().StringVar(&device, "device", "",
		"inference device (auto, cpu, cuda, ...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if model != "" {
		cfg.Embedding.Model = model
	}
	if device != "" {
		cfg.Embedding.Device = device
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if debug {
		cfg.Debug = true
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.EffectiveLogLevel(),
		Pretty: cfg.LogPretty,
	})

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return nil
}

// newService builds the embedding service. Model and device are read from
// cfg when the first embedding is requested.
func newService() *embeddings.Service {
	return embeddings.NewService(
		func() embeddings.Params {
			return embeddings.ResolveParams(cfg.Embedding.Model, cfg.Embedding.Device)
		},
		embeddings.DefaultLoaders(embeddings.Config{
			CacheDir:        cfg.Embedding.CacheDir,
			HFToken:         cfg.Embedding.HFToken,
			JinaBaseURL:     cfg.Embedding.JinaBaseURL,
			JinaAPIKey:      cfg.Embedding.JinaAPIKey,
			TogetherBaseURL: cfg.Embedding.TogetherBaseURL,
			TogetherAPIKey:  cfg.Embedding.TogetherAPIKey,
		}),
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List embedding backends",
	Long: `List the embedding backends and the model names that select them.
Backends are checked in the order shown; the first match wins.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Embedding backends (checked in order):")
		cmd.Println()
		for _, b := range embeddings.Backends() {
			normalized := "normalized"
			if !b.Normalized {
				normalized = "not normalized"
			}
			cmd.Printf("  %-22s %s (%s)\n", b.Backend, b.Match, normalized)
		}
		cmd.Println()
		cmd.Printf("Configured model %q uses the %s backend.\n",
			cfg.Embedding.Model, embeddings.SelectBackend(cfg.Embedding.Model))
	},
}
