//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package openai implements the OpenAI-compatible embeddings wire format:
// request decoding, response envelopes and error bodies.
package openai

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingsResponse is the body returned by POST /v1/embeddings.
type EmbeddingsResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  Usage           `json:"usage"`
}

// EmbeddingData holds one vector. Embedding is either []float32 or, for
// base64 encoding, a string.
type EmbeddingData struct {
	Object    string `json:"object"`
	Embedding any    `json:"embedding"`
	Index     int    `json:"index"`
}

// Usage is always zero; token counts are not tracked.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewEmbeddingsResponse formats vectors into the response envelope. Any
// encoding other than "base64" yields float arrays.
func NewEmbeddingsResponse(vectors [][]float32, model, encodingFormat string) *EmbeddingsResponse {
	data := make([]EmbeddingData, len(vectors))
	for n, vec := range vectors {
		var embedding any = vec
		if encodingFormat == EncodingBase64 {
			embedding = FloatListToBase64(vec)
		}
		data[n] = EmbeddingData{
			Object:    "embedding",
			Embedding: embedding,
			Index:     n,
		}
	}

	return &EmbeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage:  Usage{},
	}
}

// FloatListToBase64 encodes the raw little-endian float32 bytes of vec as
// standard base64, the layout OpenAI clients decode.
func FloatListToBase64(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Base64ToFloatList reverses FloatListToBase64.
func Base64ToFloatList(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decoded length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// ModelList is the body returned by GET /v1/models.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

// ModelCard describes one served model.
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// NewModelList returns a list containing the single served model.
func NewModelList(model string) *ModelList {
	list := &ModelList{Object: "list", Data: []ModelCard{}}
	if model != "" {
		list.Data = append(list.Data, ModelCard{ID: model, Object: "model", OwnedBy: "pgedge"})
	}
	return list
}
