package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by NewExtractor.
const (
	BackendFastEmbed = "fastembed"
	BackendTEI       = "tei"
)

// ProviderConfig holds configuration for creating an inference backend.
type ProviderConfig struct {
	// Backend is the backend type: "fastembed" or "tei"
	Backend string
	// Model is the embedding model name
	Model string
	// BaseURL is the TEI URL (only used for TEI backend)
	BaseURL string
	// APIKey is the TEI bearer token (optional)
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed)
	CacheDir string
	// MaxLength is the maximum input sequence length (only used for FastEmbed)
	MaxLength int
}

// NewExtractor creates the inference backend named by cfg.Backend. The
// FastEmbed backend loads its model here, so this may block on downloads.
func NewExtractor(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendFastEmbed, "":
		return NewFastEmbedExtractor(ctx, FastEmbedConfig{
			Model:     cfg.Model,
			CacheDir:  cfg.CacheDir,
			MaxLength: cfg.MaxLength,
			Logger:    logger,
		})
	case BackendTEI:
		return NewTEIExtractor(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
