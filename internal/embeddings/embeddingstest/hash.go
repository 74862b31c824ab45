//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package embeddingstest provides a deterministic in-memory encoder for
// tests that need an embedding model without loading one.
package embeddingstest

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"sync"
)

// ErrClosed is returned by Encode after Close.
var ErrClosed = errors.New("encoder closed")

// HashEncoder generates vectors seeded by a hash of each text, so the same
// text always produces the same vector. Vectors are not normalised, which
// lets tests observe whether the caller normalises them.
type HashEncoder struct {
	dimensions int

	mu     sync.Mutex
	calls  int
	texts  [][]string
	closed bool
}

// NewHashEncoder creates a HashEncoder producing vectors of the given size.
func NewHashEncoder(dimensions int) *HashEncoder {
	return &HashEncoder{dimensions: dimensions}
}

// Encode returns one deterministic vector per text.
func (e *HashEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	e.calls++
	e.texts = append(e.texts, append([]string(nil), texts...))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = Vector(text, e.dimensions)
	}
	return out, nil
}

// Close marks the encoder closed.
func (e *HashEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Calls returns how many times Encode ran.
func (e *HashEncoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts returns the texts received by each Encode call.
func (e *HashEncoder) Texts() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.texts...)
}

// Closed reports whether Close was called.
func (e *HashEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Vector returns the raw vector HashEncoder produces for text.
func Vector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, dimensions)
	for i := range vec {
		// Offset keeps the vector away from unit length.
		vec[i] = float32(rng.NormFloat64()) + 2
	}
	return vec
}
