package embeddings

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/embedd/internal/vector"
)

var (
	// ErrInference indicates the inference backend failed to process a text.
	ErrInference = errors.New("inference failed")

	// ErrShape indicates the backend returned a tensor with unexpected dims.
	ErrShape = vector.ErrShape

	// ErrUnsupported indicates the backend does not offer the requested output.
	ErrUnsupported = errors.New("output mode not supported by backend")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Pooling selects the output mode requested from an Extractor.
type Pooling int

const (
	// PoolingNone requests the raw per-token hidden states.
	PoolingNone Pooling = iota
	// PoolingMean requests a single mean-pooled vector.
	PoolingMean
)

func (p Pooling) String() string {
	if p == PoolingMean {
		return "mean"
	}
	return "none"
}

// ExtractOptions carries the hints passed to an Extractor.
type ExtractOptions struct {
	Pooling   Pooling
	Normalize bool
}

// Output is what an Extractor returns for a single text.
//
// For PoolingMean, Data holds one vector and Dims is [1, D] or [D].
// For PoolingNone, Data holds T*D values and Dims is [1, T, D].
// Tokens is the number of tokens the input was split into; zero means the
// backend did not report it.
type Output struct {
	Data   []float32
	Dims   []int
	Tokens int
}

// Extractor is the inference backend. Implementations need not be safe for
// concurrent use; the Adapter serializes calls.
type Extractor interface {
	// Extract runs the model over text.
	Extract(ctx context.Context, text string, opts ExtractOptions) (*Output, error)
	// Model returns the backend model identifier.
	Model() string
	// Close releases resources held by the backend.
	Close() error
}

// AlwaysNormalizes reports whether e returns unit length pooled vectors
// regardless of ExtractOptions.Normalize.
func AlwaysNormalizes(e Extractor) bool {
	n, ok := e.(interface{ AlwaysNormalizes() bool })
	return ok && n.AlwaysNormalizes()
}
