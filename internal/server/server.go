//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server exposes the embedding service over an OpenAI-compatible
// HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
)

// Embedder is the part of the embedding service the HTTP layer needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	ModelName() string
	Loaded() bool
}

// Options configures the HTTP server.
type Options struct {
	// Listen is the host:port to bind.
	Listen string

	// APIKey, when set, is required as a bearer token on /v1 routes.
	APIKey string

	// AccessLogAll also logs /health and /metrics requests.
	AccessLogAll bool

	ReadHeaderTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the router and HTTP server for emb.
func New(emb Embedder, opts Options) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.AccessLogAll {
		router.Use(accessLogMiddleware())
	} else {
		router.Use(accessLogMiddleware("/health", "/metrics"))
	}
	router.Use(metricsMiddleware())

	h := &handlers{embedder: emb}

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	if opts.APIKey != "" {
		v1.Use(apiKeyMiddleware(opts.APIKey))
	}
	v1.POST("/embeddings", h.embeddings)
	v1.GET("/models", h.models)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              opts.Listen,
			Handler:           router,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	logging.Info().Str("listen", s.httpServer.Addr).Msg("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
