//go:build !cgo

package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires CGO).
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the tei backend instead)")

// FastEmbedConfig holds configuration for the FastEmbed backend.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	Logger    *zap.Logger
}

// FastEmbedExtractor runs an ONNX embedding model in-process.
// This is a stub for non-CGO builds.
type FastEmbedExtractor struct{}

// NewFastEmbedExtractor returns an error when CGO is not available.
func NewFastEmbedExtractor(_ context.Context, _ FastEmbedConfig) (*FastEmbedExtractor, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Extract returns an error when CGO is not available.
func (p *FastEmbedExtractor) Extract(_ context.Context, _ string, _ ExtractOptions) (*Output, error) {
	return nil, ErrFastEmbedNotAvailable
}

// AlwaysNormalizes matches the CGO build.
func (p *FastEmbedExtractor) AlwaysNormalizes() bool {
	return true
}

// Model returns an empty name when CGO is not available.
func (p *FastEmbedExtractor) Model() string {
	return ""
}

// Close is a no-op when CGO is not available.
func (p *FastEmbedExtractor) Close() error {
	return nil
}
