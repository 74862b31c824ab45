//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package embeddings loads a single embedding model on demand and runs
// inference with it.
package embeddings

import (
	"context"
	"strings"
)

// Encoder turns a batch of texts into vectors, one per text, in order.
// Implementations must be safe for concurrent use.
type Encoder interface {
	// Encode generates vector embeddings for the given texts.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the encoder.
	Close() error
}

// Loader instantiates an Encoder for the resolved parameters.
type Loader func(ctx context.Context, p Params) (Encoder, error)

// Backend identifies how a model is loaded.
type Backend string

const (
	// BackendSentence runs a sentence-transformers model in process.
	BackendSentence Backend = "sentence-transformers"

	// BackendJina serves jina-embeddings models.
	BackendJina Backend = "jina"

	// BackendM2Bert serves the Together m2-bert 8k retrieval model.
	BackendM2Bert Backend = "m2-bert"
)

const (
	jinaMarker   = "jina-embeddings"
	m2BertMarker = "m2-bert-80M-8k-retrieval"
	bgeMarker    = "bge"

	// M2BertModel is always loaded when the m2-bert backend is selected,
	// whatever the configured name.
	M2BertModel = "togethercomputer/m2-bert-80M-8k-retrieval"

	// RetrievalInstruction is prepended to every input for bge models.
	RetrievalInstruction = "为这个句子生成表示以用于检索相关文章："
)

// SelectBackend picks the backend for a model name by substring match.
func SelectBackend(model string) Backend {
	switch {
	case strings.Contains(model, jinaMarker):
		return BackendJina
	case strings.Contains(model, m2BertMarker):
		return BackendM2Bert
	default:
		return BackendSentence
	}
}

// Backends lists every backend with the rule that selects it.
func Backends() []BackendInfo {
	return []BackendInfo{
		{Backend: BackendJina, Match: "model name contains \"" + jinaMarker + "\"", Normalized: true},
		{Backend: BackendM2Bert, Match: "model name contains \"" + m2BertMarker + "\"", Normalized: false},
		{Backend: BackendSentence, Match: "any other model name", Normalized: true},
	}
}

// BackendInfo describes a backend for listings.
type BackendInfo struct {
	Backend    Backend
	Match      string
	Normalized bool
}

// PrepareInputs applies the model-specific input transformation.
func PrepareInputs(model string, inputs []string) []string {
	if SelectBackend(model) == BackendM2Bert || !strings.Contains(model, bgeMarker) {
		return inputs
	}
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = RetrievalInstruction + in
	}
	return out
}

// Normalizes reports whether outputs for the model are L2-normalised.
func Normalizes(model string) bool {
	return SelectBackend(model) != BackendM2Bert
}
