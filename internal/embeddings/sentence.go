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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelineBackends"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
)

const (
	defaultHubOwner = "sentence-transformers"
	onnxFilePath    = "onnx/model.onnx"

	// PoolingConfigFile is the sentence-transformers pooling module config,
	// relative to the model directory.
	PoolingConfigFile = "1_Pooling/config.json"
)

// Pooling is how token embeddings are reduced to one vector per text.
type Pooling string

const (
	PoolingMean Pooling = "mean"
	PoolingCLS  Pooling = "cls"
)

type poolingConfig struct {
	CLSToken          bool `json:"pooling_mode_cls_token"`
	MeanTokens        bool `json:"pooling_mode_mean_tokens"`
	MaxTokens         bool `json:"pooling_mode_max_tokens"`
	MeanSqrtLenTokens bool `json:"pooling_mode_mean_sqrt_len_tokens"`
	WeightedMean      bool `json:"pooling_mode_weightedmean_tokens"`
	LastToken         bool `json:"pooling_mode_lasttoken"`
}

// ReadPooling reads the pooling mode from modelDir. A model without a
// pooling config is mean pooled. Modes other than a single mean or CLS
// token are rejected.
func ReadPooling(modelDir string) (Pooling, error) {
	data, err := os.ReadFile(filepath.Join(modelDir, PoolingConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return PoolingMean, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pooling config: %w", err)
	}

	var pc poolingConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return "", fmt.Errorf("invalid pooling config %s: %w", PoolingConfigFile, err)
	}

	others := pc.MaxTokens || pc.MeanSqrtLenTokens || pc.WeightedMean || pc.LastToken
	switch {
	case pc.CLSToken && !pc.MeanTokens && !others:
		return PoolingCLS, nil
	case pc.MeanTokens && !pc.CLSToken && !others:
		return PoolingMean, nil
	case !pc.CLSToken && !pc.MeanTokens && !others:
		return PoolingMean, nil
	}
	return "", fmt.Errorf("unsupported pooling mode in %s; only mean or CLS token pooling can be served", PoolingConfigFile)
}

// SentenceEncoder runs a sentence-transformers feature extraction model in
// process using hugot's pure Go backend.
type SentenceEncoder struct {
	// The pipeline is not documented as reentrant.
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	pooling  Pooling
}

// NewSentenceEncoder loads the ONNX model found in modelPath, pooling its
// output the way the model's sentence-transformers config asks.
func NewSentenceEncoder(modelPath, name string) (*SentenceEncoder, error) {
	pooling, err := ReadPooling(modelPath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create inference session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      name,
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("failed to create feature extraction pipeline: %w", err)
	}

	logging.Debug().
		Str("model", name).
		Str("pooling", string(pooling)).
		Msg("Created feature extraction pipeline")

	return &SentenceEncoder{session: session, pipeline: pipeline, pooling: pooling}, nil
}

// Encode runs the pipeline over texts.
func (e *SentenceEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pooling == PoolingCLS {
		return e.encodeFirstToken(texts)
	}

	out, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, err
	}
	return out.Embeddings, nil
}

// encodeFirstToken runs the model without hugot's mean pooling and keeps
// the first token of each sequence.
func (e *SentenceEncoder) encodeFirstToken(texts []string) (vectors [][]float32, err error) {
	batch := pipelineBackends.NewBatch(len(texts))
	defer func() {
		err = errors.Join(err, batch.Destroy())
	}()

	if err = e.pipeline.Preprocess(batch, texts); err != nil {
		return nil, err
	}
	if err = e.pipeline.Forward(batch); err != nil {
		return nil, err
	}
	if len(batch.OutputValues) == 0 {
		return nil, fmt.Errorf("model produced no output")
	}
	return firstToken(batch.OutputValues[0])
}

// firstToken takes the first token vector of each sequence. Output that is
// already one vector per text is returned as is.
func firstToken(output any) ([][]float32, error) {
	switch v := output.(type) {
	case [][]float32:
		return v, nil
	case [][][]float32:
		vectors := make([][]float32, len(v))
		for i, tokens := range v {
			if len(tokens) == 0 {
				return nil, fmt.Errorf("model produced no tokens for input %d", i)
			}
			vectors[i] = append([]float32(nil), tokens[0]...)
		}
		return vectors, nil
	}
	return nil, fmt.Errorf("model output type %T is not supported", output)
}

// Close destroys the inference session.
func (e *SentenceEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

// HubRepo returns the Hugging Face repository for a model name. Bare names
// belong to the sentence-transformers organisation.
func HubRepo(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return defaultHubOwner + "/" + model
}

// cachePath is where a downloaded repository lives under cacheDir.
func cachePath(cacheDir, repo string) string {
	return filepath.Join(cacheDir, strings.ReplaceAll(repo, "/", "_"))
}

// ResolveModelPath returns a local directory holding the model, downloading
// it into cacheDir when it is neither a local directory nor cached.
func ResolveModelPath(cacheDir, hfToken, model string) (string, error) {
	if isDir(model) {
		return model, nil
	}

	repo := HubRepo(model)
	cached := cachePath(cacheDir, repo)
	if isDir(cached) {
		return cached, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model cache %s: %w", cacheDir, err)
	}

	logging.Info().
		Str("repo", repo).
		Str("cache_dir", cacheDir).
		Msg("Downloading embedding model")

	hubRepo := hub.New(repo).
		WithAuth(hfToken).
		WithCacheDir(filepath.Join(cacheDir, ".hub")).
		WithProgressBar(false)
	hubRepo.Verbosity = 0

	var files []string
	for name, err := range hubRepo.IterFileNames() {
		if err != nil {
			return "", fmt.Errorf("failed to list files of %s: %w", repo, err)
		}
		files = append(files, name)
	}

	opts := hugot.NewDownloadOptions()
	opts.AuthToken = hfToken
	opts.OnnxFilePath = chooseOnnxFile(files)

	path, err := hugot.DownloadModel(repo, cacheDir, opts)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", repo, err)
	}

	// hugot only fetches the ONNX file and tokenizer.
	if hasFile(files, PoolingConfigFile) {
		if err := copyHubFile(hubRepo, PoolingConfigFile, path); err != nil {
			_ = os.RemoveAll(path)
			return "", fmt.Errorf("failed to download %s of %s: %w", PoolingConfigFile, repo, err)
		}
	}
	return path, nil
}

// chooseOnnxFile picks the ONNX file for hugot to download. A repo with a
// single ONNX file needs no choice; otherwise the standard export is used.
func chooseOnnxFile(files []string) string {
	var onnx []string
	for _, f := range files {
		if strings.HasSuffix(f, ".onnx") {
			onnx = append(onnx, f)
		}
	}
	if len(onnx) == 1 {
		return ""
	}
	if hasFile(onnx, onnxFilePath) {
		return onnxFilePath
	}
	return ""
}

func hasFile(files []string, name string) bool {
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}

func copyHubFile(repo *hub.Repo, name, modelDir string) error {
	src, err := repo.DownloadFile(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	dst := filepath.Join(modelDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
