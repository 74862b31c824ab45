//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics holds the Prometheus collectors for pgedge-embedserver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration observes HTTP request latency by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// ModelLoads counts model load attempts by backend and outcome.
	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedserver_model_loads_total",
			Help: "Embedding model load attempts",
		},
		[]string{"backend", "outcome"},
	)

	// ModelLoadDuration observes how long model loads take.
	ModelLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedserver_model_load_duration_seconds",
			Help:    "Embedding model load duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)

	// ModelLoaded is 1 while a model occupies the slot.
	ModelLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "embedserver_model_loaded",
			Help: "Whether an embedding model is loaded (1) or not (0)",
		},
		[]string{"backend", "model"},
	)

	// InputsEmbedded counts inputs successfully embedded.
	InputsEmbedded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedserver_inputs_embedded_total",
			Help: "Number of input texts embedded",
		},
	)

	// InferenceDuration observes the time spent encoding a batch.
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedserver_inference_duration_seconds",
			Help:    "Embedding inference duration per batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// RowsStored counts embeddings written to PostgreSQL by ingest.
	RowsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedserver_rows_stored_total",
			Help: "Number of embedding rows written to PostgreSQL",
		},
	)
)
