//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/internal/metrics"
	"github.com/pgEdge/pgedge-embedserver/internal/openai"
)

// Service owns the single model slot. The slot is empty until the first
// Load or Embed, and a loaded model is kept for the life of the Service.
type Service struct {
	paramsFunc func() Params
	paramsOnce sync.Once
	params     Params

	loaders map[Backend]Loader

	mu      sync.Mutex
	encoder Encoder
	backend Backend
}

// NewService creates a Service. paramsFunc is called once, the first time
// the parameters are needed.
func NewService(paramsFunc func() Params, loaders map[Backend]Loader) *Service {
	return &Service{
		paramsFunc: paramsFunc,
		loaders:    loaders,
	}
}

// Params returns the resolved parameters, resolving them on first call.
func (s *Service) Params() Params {
	s.paramsOnce.Do(func() {
		if s.paramsFunc != nil {
			s.params = s.paramsFunc()
		}
	})
	return s.params
}

// ModelName returns the configured model name.
func (s *Service) ModelName() string {
	return s.Params().Model
}

// Loaded reports whether a model occupies the slot.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder != nil
}

// Load loads the configured model if the slot is empty.
func (s *Service) Load(ctx context.Context) error {
	p := s.Params()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, p)
}

func (s *Service) loadLocked(ctx context.Context, p Params) error {
	if s.encoder != nil {
		logging.Info().Str("model", p.Model).Msg("Embedding model already loaded")
		return nil
	}
	if p.Model == "" {
		return openai.ServiceUnavailable("Error: No embedding model is configured", "")
	}

	backend := SelectBackend(p.Model)
	failed := fmt.Sprintf("Error: Failed to load embedding model: %s", p.Model)

	loader, ok := s.loaders[backend]
	if !ok {
		metrics.ModelLoads.WithLabelValues(string(backend), "failure").Inc()
		return openai.ServiceUnavailable(failed, fmt.Sprintf("no loader for backend %s", backend))
	}

	logging.Info().
		Str("model", p.Model).
		Str("device", p.DeviceLabel()).
		Str("backend", string(backend)).
		Msg("Try embedding model")

	start := time.Now()
	enc, err := loader(ctx, p)
	metrics.ModelLoadDuration.WithLabelValues(string(backend)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelLoads.WithLabelValues(string(backend), "failure").Inc()
		logging.Error().
			Err(err).
			Str("model", p.Model).
			Msg("Failed to load embedding model")
		return openai.ServiceUnavailable(failed, err.Error())
	}

	s.encoder = enc
	s.backend = backend
	metrics.ModelLoads.WithLabelValues(string(backend), "success").Inc()
	metrics.ModelLoaded.WithLabelValues(string(backend), p.Model).Set(1)

	logging.Info().
		Str("model", p.Model).
		Dur("took", time.Since(start)).
		Msg("Loaded embedding model")

	return nil
}

// model returns the loaded encoder, loading it first if needed.
func (s *Service) model(ctx context.Context) (Encoder, Backend, error) {
	p := s.Params()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		if err := s.loadLocked(ctx, p); err != nil {
			return nil, "", err
		}
	}
	return s.encoder, s.backend, nil
}

// Embed returns one vector per input, in input order.
func (s *Service) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	enc, backend, err := s.model(ctx)
	if err != nil {
		return nil, err
	}

	model := s.ModelName()
	logging.Debug().
		Str("model", model).
		Str("backend", string(backend)).
		Msg("Embedding model")

	start := time.Now()
	vectors, err := enc.Encode(ctx, PrepareInputs(model, inputs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode inputs: %w", err)
	}
	metrics.InferenceDuration.WithLabelValues(string(backend)).Observe(time.Since(start).Seconds())

	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("model returned %d embeddings for %d inputs", len(vectors), len(inputs))
	}

	if Normalizes(model) {
		for _, vec := range vectors {
			Normalize(vec)
		}
	}

	metrics.InputsEmbedded.Add(float64(len(vectors)))
	if len(vectors) > 0 {
		logging.Debug().
			Int("dimensions", len(vectors[0])).
			Int("count", len(vectors)).
			Msg("Embeddings return size")
	}

	return vectors, nil
}

// Close unloads the model. A later Embed loads it again.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	metrics.ModelLoaded.WithLabelValues(string(s.backend), s.params.Model).Set(0)
	s.encoder = nil
	s.backend = ""
	return err
}

// Normalize scales vec to unit length in place. Zero vectors are left alone.
func Normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
