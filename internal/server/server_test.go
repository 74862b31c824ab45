//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pgEdge/pgedge-embedserver/internal/embeddings"
	"github.com/pgEdge/pgedge-embedserver/internal/embeddings/embeddingstest"
	"github.com/pgEdge/pgedge-embedserver/internal/openai"
)

const testDims = 4

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(model string, load embeddings.Loader) *embeddings.Service {
	if load == nil {
		load = func(context.Context, embeddings.Params) (embeddings.Encoder, error) {
			return embeddingstest.NewHashEncoder(testDims), nil
		}
	}
	return embeddings.NewService(
		func() embeddings.Params { return embeddings.ResolveParams(model, "cpu") },
		map[embeddings.Backend]embeddings.Loader{
			embeddings.BackendSentence: load,
			embeddings.BackendJina:     load,
			embeddings.BackendM2Bert:   load,
		},
	)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) openai.ErrorBody {
	t.Helper()
	var body openai.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestEmbeddingsFloat(t *testing.T) {
	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/embeddings",
		`{"input":["hello","world"],"model":"text-embedding-ada-002"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string         `json:"model"`
		Usage map[string]int `json:"usage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Object != "list" {
		t.Errorf("Expected object 'list', got %q", resp.Object)
	}
	if resp.Model != "all-mpnet-base-v2" {
		t.Errorf("Expected configured model, got %q", resp.Model)
	}
	if resp.Usage["prompt_tokens"] != 0 || resp.Usage["total_tokens"] != 0 {
		t.Errorf("Expected zero usage, got %v", resp.Usage)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("Expected 2 embeddings, got %d", len(resp.Data))
	}
	for i, d := range resp.Data {
		if d.Index != i {
			t.Errorf("data[%d].index = %d", i, d.Index)
		}
		if d.Object != "embedding" {
			t.Errorf("data[%d].object = %q", i, d.Object)
		}
		if len(d.Embedding) != testDims {
			t.Errorf("data[%d] has %d dimensions, want %d", i, len(d.Embedding), testDims)
		}
	}
}

func TestEmbeddingsBase64(t *testing.T) {
	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/embeddings",
		`{"input":"hello","encoding_format":"base64"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []struct {
			Embedding string `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("Expected 1 embedding for a string input, got %d", len(resp.Data))
	}

	vec, err := openai.Base64ToFloatList(resp.Data[0].Embedding)
	if err != nil {
		t.Fatalf("Failed to decode base64 embedding: %v", err)
	}

	want, err := svc.Embed(t.Context(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range want[0] {
		if vec[i] != want[0][i] {
			t.Fatalf("Decoded vector differs at %d: %v != %v", i, vec[i], want[0][i])
		}
	}
}

func TestEmbeddingsInvalidRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"missing input", `{"model":"x"}`, "Missing required argument input"},
		{"empty array", `{"input":[]}`, "Missing required argument input"},
		{"token ids", `{"input":[[1,2,3]]}`, "token id inputs are not supported; send strings"},
		{"not json", `input=hello`, ""},
		{"empty body", ``, ""},
	}

	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{}).Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/embeddings", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Error.Type != openai.TypeInvalidRequest {
				t.Errorf("Expected invalid_request_error, got %q", body.Error.Type)
			}
			if tt.wantMessage != "" && body.Error.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, body.Error.Message)
			}
		})
	}

	if svc.Loaded() {
		t.Error("Invalid requests should not load the model")
	}
}

func TestEmbeddingsLoadFailure(t *testing.T) {
	svc := newTestService("broken-model", func(context.Context, embeddings.Params) (embeddings.Encoder, error) {
		return nil, errors.New("secret path /models/broken is unreadable")
	})
	h := New(svc, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/embeddings", `{"input":"hello"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeError(t, rec)
	if body.Error.Message != "Error: Failed to load embedding model: broken-model" {
		t.Errorf("Unexpected message: %q", body.Error.Message)
	}
	if body.Error.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected error code 503, got %d", body.Error.Code)
	}
	if strings.Contains(rec.Body.String(), "secret path") {
		t.Error("Internal message leaked to the client")
	}
}

func TestAPIKey(t *testing.T) {
	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{APIKey: "sk-test"}).Handler()

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"Authorization": "Bearer sk-other"}, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "sk-test"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer sk-test"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/embeddings", `{"input":"hello"}`, tt.headers)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized {
				if body := decodeError(t, rec); body.Error.Type != openai.TypeAuthentication {
					t.Errorf("Expected authentication_error, got %q", body.Error.Type)
				}
			}
		})
	}

	// Health stays open.
	if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected /health to be open, got %d", rec.Code)
	}
}

func TestModels(t *testing.T) {
	svc := newTestService("BAAI/bge-small-en-v1.5", nil)
	h := New(svc, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/v1/models", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var list openai.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode model list: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "BAAI/bge-small-en-v1.5" {
		t.Errorf("Unexpected model list: %+v", list)
	}
	if svc.Loaded() {
		t.Error("Listing models should not load the model")
	}
}

func TestHealth(t *testing.T) {
	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{}).Handler()

	check := func(wantLoaded bool) {
		t.Helper()
		rec := do(t, h, http.MethodGet, "/health", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var body struct {
			Status string `json:"status"`
			Model  string `json:"model"`
			Loaded bool   `json:"loaded"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode health: %v", err)
		}
		if body.Status != "ok" || body.Model != "all-mpnet-base-v2" {
			t.Errorf("Unexpected health body: %+v", body)
		}
		if body.Loaded != wantLoaded {
			t.Errorf("Expected loaded=%v, got %v", wantLoaded, body.Loaded)
		}
	}

	check(false)
	if rec := do(t, h, http.MethodPost, "/v1/embeddings", `{"input":"x"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("Embeddings request failed: %d", rec.Code)
	}
	check(true)
}

func TestMetricsEndpoint(t *testing.T) {
	svc := newTestService("all-mpnet-base-v2", nil)
	h := New(svc, Options{}).Handler()

	do(t, h, http.MethodPost, "/v1/embeddings", `{"input":"x"}`, nil)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	for _, name := range []string{
		"embedserver_http_requests_total",
		"embedserver_inputs_embedded_total",
		"embedserver_model_loads_total",
	} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("Expected metric %s in /metrics output", name)
		}
	}
}
