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
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-embedserver/internal/openai"
)

func writePoolingConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, PoolingConfigFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create pooling directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write pooling config: %v", err)
	}
}

func TestReadPooling(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		want    Pooling
		wantErr bool
	}{
		{
			name:   "bge cls token",
			config: `{"word_embedding_dimension": 384, "pooling_mode_cls_token": true, "pooling_mode_mean_tokens": false}`,
			want:   PoolingCLS,
		},
		{
			name:   "minilm mean tokens",
			config: `{"word_embedding_dimension": 384, "pooling_mode_cls_token": false, "pooling_mode_mean_tokens": true}`,
			want:   PoolingMean,
		},
		{
			name:   "no mode set",
			config: `{"word_embedding_dimension": 384}`,
			want:   PoolingMean,
		},
		{
			name:    "max tokens",
			config:  `{"pooling_mode_max_tokens": true}`,
			wantErr: true,
		},
		{
			name:    "last token",
			config:  `{"pooling_mode_lasttoken": true}`,
			wantErr: true,
		},
		{
			name:    "cls and mean together",
			config:  `{"pooling_mode_cls_token": true, "pooling_mode_mean_tokens": true}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			config:  `{"pooling_mode_cls_token": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePoolingConfig(t, dir, tt.config)

			got, err := ReadPooling(dir)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got pooling %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected pooling %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReadPoolingWithoutConfig(t *testing.T) {
	got, err := ReadPooling(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != PoolingMean {
		t.Errorf("Expected pooling %q, got %q", PoolingMean, got)
	}
}

func TestFirstToken(t *testing.T) {
	tokens := [][][]float32{
		{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		{{0, 2, 0}, {5, 5, 5}},
	}

	got, err := firstToken(tokens)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(got))
	}
	want := [][]float32{{1, 0, 0}, {0, 2, 0}}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("Vector %d: expected %v, got %v", i, want[i], got[i])
				break
			}
		}
	}

	// The result must not alias the model output.
	got[0][0] = 42
	if tokens[0][0][0] != 1 {
		t.Error("Expected first token vector to be copied")
	}
}

func TestFirstTokenPooledOutput(t *testing.T) {
	pooled := [][]float32{{0.5, 0.5}, {1, 0}}

	got, err := firstToken(pooled)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 || got[1][0] != 1 {
		t.Errorf("Expected pooled output unchanged, got %v", got)
	}
}

func TestFirstTokenErrors(t *testing.T) {
	if _, err := firstToken([][][]float32{{}}); err == nil {
		t.Error("Expected error for a sequence without tokens")
	}
	if _, err := firstToken([]int64{1, 2}); err == nil {
		t.Error("Expected error for an unsupported output type")
	}
}

func TestChooseOnnxFile(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{
			name:  "single root model",
			files: []string{"config.json", "tokenizer.json", "model.onnx"},
			want:  "",
		},
		{
			name:  "single nested model",
			files: []string{"tokenizer.json", "onnx/model.onnx"},
			want:  "",
		},
		{
			name: "several exports",
			files: []string{
				"tokenizer.json",
				"onnx/model.onnx",
				"onnx/model_O4.onnx",
				"onnx/model_qint8_avx512.onnx",
			},
			want: onnxFilePath,
		},
		{
			name:  "several exports without the standard one",
			files: []string{"a.onnx", "b.onnx"},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseOnnxFile(tt.files); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSentenceLoaderRejectsUnsupportedPooling(t *testing.T) {
	modelDir := t.TempDir()
	writePoolingConfig(t, modelDir, `{"pooling_mode_max_tokens": true}`)

	svc := NewService(staticParams(modelDir), DefaultLoaders(Config{CacheDir: t.TempDir()}))

	_, err := svc.Embed(t.Context(), []string{"x"})
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *openai.Error, got %v", err)
	}
	if apiErr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", apiErr.Code)
	}
	if !strings.Contains(apiErr.InternalMessage, "pooling") {
		t.Errorf("Internal message should name the pooling mode, got %q", apiErr.InternalMessage)
	}
	if svc.Loaded() {
		t.Error("Slot must stay empty after a failed load")
	}
}
