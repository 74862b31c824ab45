//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"bytes"
	"encoding/json"
)

// EncodingBase64 selects base64-encoded float32 vectors in the response.
const EncodingBase64 = "base64"

// EncodingFloat is the default encoding: JSON float arrays.
const EncodingFloat = "float"

// EmbeddingsRequest is the body of POST /v1/embeddings.
type EmbeddingsRequest struct {
	Input json.RawMessage `json:"input"`

	// Model is accepted for client compatibility and ignored; the server
	// always answers with its configured model.
	Model string `json:"model,omitempty"`

	EncodingFormat string `json:"encoding_format,omitempty"`
	User           string `json:"user,omitempty"`
}

// Format returns the requested encoding format, defaulting to float.
func (r *EmbeddingsRequest) Format() string {
	if r.EncodingFormat == "" {
		return EncodingFloat
	}
	return r.EncodingFormat
}

// Inputs decodes the input field into a batch of strings. A single string
// becomes a batch of one. Token-id inputs are rejected.
func (r *EmbeddingsRequest) Inputs() ([]string, error) {
	raw := bytes.TrimSpace(r.Input)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, missingInput()
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, InvalidRequest("input must be a string or an array of strings", "input")
		}
		if s == "" {
			return nil, missingInput()
		}
		return []string{s}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, InvalidRequest("input must be a string or an array of strings", "input")
		}
		if len(items) == 0 {
			return nil, missingInput()
		}
		out := make([]string, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if isNumber(item) {
				return nil, InvalidRequest("token id inputs are not supported; send strings", "input")
			}
			if len(item) == 0 || item[0] != '"' {
				return nil, InvalidRequest("input must be a string or an array of strings", "input")
			}
			if err := json.Unmarshal(item, &out[i]); err != nil {
				return nil, InvalidRequest("input must be a string or an array of strings", "input")
			}
		}
		return out, nil
	}

	return nil, InvalidRequest("input must be a string or an array of strings", "input")
}

// isNumber reports whether raw is a JSON number or a non-empty array of
// numbers.
func isNumber(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil || len(items) == 0 {
			return false
		}
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] == '[' || !isNumber(item) {
				return false
			}
		}
		return true
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return false
	}
	var n float64
	return json.Unmarshal(raw, &n) == nil
}

func missingInput() *Error {
	return InvalidRequest("Missing required argument input", "input")
}
