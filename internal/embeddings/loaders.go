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
	"strings"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
)

// Config holds what the loaders need beyond Params.
type Config struct {
	// CacheDir is where downloaded models are kept.
	CacheDir string

	// HFToken authenticates Hugging Face downloads.
	HFToken string

	// JinaBaseURL and JinaAPIKey address the jina-embeddings endpoint.
	JinaBaseURL string
	JinaAPIKey  string

	// TogetherBaseURL and TogetherAPIKey address the m2-bert endpoint.
	TogetherBaseURL string
	TogetherAPIKey  string
}

// DefaultLoaders returns a loader for each backend.
func DefaultLoaders(cfg Config) map[Backend]Loader {
	return map[Backend]Loader{
		BackendSentence: sentenceLoader(cfg),
		BackendJina:     jinaLoader(cfg),
		BackendM2Bert:   m2BertLoader(cfg),
	}
}

func sentenceLoader(cfg Config) Loader {
	return func(_ context.Context, p Params) (Encoder, error) {
		if p.Device != "" && !strings.EqualFold(p.Device, "cpu") {
			logging.Warn().
				Str("device", p.Device).
				Msg("In-process inference runs on the CPU; ignoring device")
		}

		path, err := ResolveModelPath(cfg.CacheDir, cfg.HFToken, p.Model)
		if err != nil {
			return nil, err
		}
		return NewSentenceEncoder(path, p.Model)
	}
}

func jinaLoader(cfg Config) Loader {
	return func(_ context.Context, p Params) (Encoder, error) {
		return loadRemote("jina", cfg.JinaBaseURL, cfg.JinaAPIKey, JinaModelID(p.Model))
	}
}

func m2BertLoader(cfg Config) Loader {
	return func(_ context.Context, _ Params) (Encoder, error) {
		return loadRemote("together", cfg.TogetherBaseURL, cfg.TogetherAPIKey, M2BertModel)
	}
}

func loadRemote(provider, baseURL, apiKey, model string) (Encoder, error) {
	enc, err := NewRemoteEncoder(provider, baseURL, apiKey, model)
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("provider", provider).
		Str("remote_model", enc.Model()).
		Msg("Using provider embeddings endpoint")
	return enc, nil
}
