//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"
)

// FastEmbedConfig holds configuration for the FastEmbed backend.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	// Supported: BAAI/bge-small-en-v1.5 (default), BAAI/bge-base-en-v1.5,
	// sentence-transformers/all-MiniLM-L6-v2, etc.
	Model string

	// CacheDir is the directory to cache model files.
	// Defaults to ./local_cache
	CacheDir string

	// MaxLength is the maximum input sequence length.
	// Defaults to 512.
	MaxLength int

	// Logger receives runtime bootstrap messages.
	Logger *zap.Logger
}

// FastEmbedExtractor runs an ONNX embedding model in-process.
//
// FastEmbed only produces pooled, L2 normalized vectors. The Normalize hint
// is ignored and raw per-token output is reported as unsupported.
type FastEmbedExtractor struct {
	model     *fastembed.FlagEmbedding
	modelName string
	counter   TokenCounter
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	// Also accept the fastembed model names directly
	"fast-bge-small-en-v1.5": fastembed.BGESmallENV15,
	"fast-bge-small-en":      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":  fastembed.BGEBaseENV15,
	"fast-bge-base-en":       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5": fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":  fastembed.AllMiniLML6V2,
}

// NewFastEmbedExtractor loads the model, downloading the ONNX runtime and
// model files when they are missing.
func NewFastEmbedExtractor(ctx context.Context, cfg FastEmbedConfig) (*FastEmbedExtractor, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q (supported: BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, cfg.Model)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	libPath, err := EnsureONNXRuntime(ctx, logger)
	if err != nil {
		return nil, err
	}
	if err := setONNXPathEnv(libPath); err != nil {
		return nil, fmt.Errorf("setting ONNX_PATH: %w", err)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	// Disable progress bar for server use
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	tokenizerPath := filepath.Join(cacheDir, string(model), "tokenizer.json")
	counter, err := NewTokenizerCounter(tokenizerPath, maxLength)
	if err != nil {
		logger.Warn("tokenizer unavailable, estimating token counts",
			zap.String("path", tokenizerPath),
			zap.Error(err))
		counter = NewApproxCounter(maxLength)
	}

	return &FastEmbedExtractor{
		model:     flagEmbed,
		modelName: cfg.Model,
		counter:   counter,
	}, nil
}

// Extract implements Extractor.
func (p *FastEmbedExtractor) Extract(ctx context.Context, text string, opts ExtractOptions) (*Output, error) {
	if opts.Pooling != PoolingMean {
		return nil, fmt.Errorf("%w: fastembed has no per-token output", ErrUnsupported)
	}

	// Check context before proceeding
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vectors, err := p.model.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(vectors) == 0 {
		return &Output{}, nil
	}

	tokens, err := p.counter.CountTokens(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	v := vectors[0]
	return &Output{Data: v, Dims: []int{1, len(v)}, Tokens: tokens}, nil
}

// AlwaysNormalizes is true: fastembed L2 normalizes every pooled vector.
func (p *FastEmbedExtractor) AlwaysNormalizes() bool {
	return true
}

// Model returns the configured model name.
func (p *FastEmbedExtractor) Model() string {
	return p.modelName
}

// Close releases resources held by the FastEmbed backend.
func (p *FastEmbedExtractor) Close() error {
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}

// setONNXPathEnv sets the ONNX_PATH environment variable.
// fastembed-go reads it to locate the shared library.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}
