//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest embeds text in batches and hands the vectors to a sink.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pgEdge/pgedge-embedserver/internal/datagen"
	"github.com/pgEdge/pgedge-embedserver/internal/logging"
)

// DefaultBatchSize is the number of texts embedded per model call.
const DefaultBatchSize = 32

// Embedder produces vectors for a batch of texts.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	ModelName() string
}

// Sink stores embedded rows.
type Sink interface {
	Insert(ctx context.Context, model string, contents []string, vectors [][]float32) (int64, error)
	Table() string
}

// Options configures an Ingester.
type Options struct {
	// BatchSize is the number of texts per Embed call.
	BatchSize int

	// Prepare runs once, after the first batch is embedded and before it is
	// stored, with the vector size the model produces.
	Prepare func(ctx context.Context, dimensions int) error

	// ProgressInterval is how often, in rows, progress is logged.
	ProgressInterval int64
}

// Ingester moves texts through an Embedder into a Sink.
type Ingester struct {
	embedder Embedder
	sink     Sink
	opts     Options
}

// New creates an Ingester.
func New(embedder Embedder, sink Sink, opts Options) *Ingester {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressInterval < 1 {
		opts.ProgressInterval = int64(opts.BatchSize) * 10
	}
	return &Ingester{embedder: embedder, sink: sink, opts: opts}
}

// Run embeds and stores texts, returning the number of rows written.
func (i *Ingester) Run(ctx context.Context, texts []string) (int64, error) {
	model := i.embedder.ModelName()
	progress := datagen.NewProgressReporter(i.sink.Table(), int64(len(texts)), i.opts.ProgressInterval)
	prepared := i.opts.Prepare == nil

	logging.Info().
		Str("model", model).
		Str("table", i.sink.Table()).
		Int("texts", len(texts)).
		Int("batch_size", i.opts.BatchSize).
		Msg("Ingesting embeddings")

	for start := 0; start < len(texts); start += i.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return progress.Rows(), err
		}

		end := min(start+i.opts.BatchSize, len(texts))
		batch := texts[start:end]

		vectors, err := i.embedder.Embed(ctx, batch)
		if err != nil {
			return progress.Rows(), fmt.Errorf("failed to embed rows %d-%d: %w", start, end-1, err)
		}

		if !prepared {
			if len(vectors) == 0 || len(vectors[0]) == 0 {
				return 0, fmt.Errorf("model %s returned empty embeddings", model)
			}
			if err := i.opts.Prepare(ctx, len(vectors[0])); err != nil {
				return 0, err
			}
			prepared = true
		}

		n, err := i.sink.Insert(ctx, model, batch, vectors)
		progress.Update(n)
		if err != nil {
			return progress.Rows(), err
		}
	}

	progress.Done()
	return progress.Rows(), nil
}

// ReadLines returns the non-blank lines of r, trimmed.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}
