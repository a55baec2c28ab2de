package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/embedd/internal/vector"
	"go.uber.org/zap"
)

// Path names the branch the Adapter took for a text.
type Path string

const (
	// PathPooled means the backend returned a pooled, normalized vector.
	PathPooled Path = "pooled"
	// PathRaw means the backend returned per-token states pooled locally.
	PathRaw Path = "raw"
)

// Embedding is a pooled vector plus the tokens consumed to produce it.
type Embedding struct {
	Vector []float32
	Tokens int
	Path   Path
}

// Adapter wraps an Extractor. It serializes every call into the backend and
// hides which output mode the backend supports.
type Adapter struct {
	extractor Extractor
	metrics   *Metrics
	logger    *zap.Logger

	// unitOnly is set for backends that ignore Normalize on the pooled path.
	unitOnly   bool
	unitWarned sync.Once

	mu sync.Mutex
}

// NewAdapter creates an Adapter over extractor.
func NewAdapter(extractor Extractor, metrics *Metrics, logger *zap.Logger) (*Adapter, error) {
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(logger)
	}
	return &Adapter{
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
		unitOnly:  AlwaysNormalizes(extractor),
	}, nil
}

// Model returns the backend model identifier.
func (a *Adapter) Model() string {
	return a.extractor.Model()
}

// Embed produces the pooled vector for text. The vector is L2 normalized
// when normalize is set.
//
// Backends that always normalize log one warning the first time a
// non-normalized vector is requested.
//
// The pooled path is tried first. A result without data or dims, or an
// ErrUnsupported from the backend, switches to the raw path. Any other
// backend error is returned wrapped in ErrInference and is not retried.
func (a *Adapter) Embed(ctx context.Context, text string, normalize bool) (Embedding, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	model := a.extractor.Model()

	start := time.Now()
	emb, ok, err := a.pooled(ctx, text, normalize)
	if err != nil {
		a.metrics.RecordExtraction(ctx, model, string(PathPooled), time.Since(start), 0, err)
		return Embedding{}, err
	}
	if ok {
		a.metrics.RecordExtraction(ctx, model, string(PathPooled), time.Since(start), emb.Tokens, nil)
		if !normalize && a.unitOnly {
			a.unitWarned.Do(func() {
				a.logger.Warn("backend always returns unit vectors, normalize=false has no effect",
					zap.String("model", model))
			})
		}
		return emb, nil
	}

	a.metrics.RecordFallback(ctx, model)
	a.logger.Debug("pooled output unavailable, pooling raw tensor", zap.String("model", model))

	start = time.Now()
	emb, err = a.raw(ctx, text, normalize)
	a.metrics.RecordExtraction(ctx, model, string(PathRaw), time.Since(start), emb.Tokens, err)
	return emb, err
}

// pooled asks the backend for a pooled vector. ok is false when the backend
// cannot provide one and the raw path should be used.
func (a *Adapter) pooled(ctx context.Context, text string, normalize bool) (Embedding, bool, error) {
	out, err := a.extractor.Extract(ctx, text, ExtractOptions{Pooling: PoolingMean, Normalize: normalize})
	if errors.Is(err, ErrUnsupported) {
		return Embedding{}, false, nil
	}
	if err != nil {
		return Embedding{}, false, inferenceError(err)
	}
	if !isPooledOutput(out) {
		return Embedding{}, false, nil
	}

	v := make([]float32, len(out.Data))
	copy(v, out.Data)
	return Embedding{Vector: v, Tokens: out.Tokens, Path: PathPooled}, true, nil
}

// raw asks the backend for per-token states and pools them here.
func (a *Adapter) raw(ctx context.Context, text string, normalize bool) (Embedding, error) {
	out, err := a.extractor.Extract(ctx, text, ExtractOptions{Pooling: PoolingNone})
	if err != nil {
		return Embedding{}, inferenceError(err)
	}
	if out == nil {
		return Embedding{}, fmt.Errorf("%w: %w: empty output", ErrInference, ErrShape)
	}

	tensor, err := vector.NewTensor(out.Data, out.Dims)
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	tokens, _, _ := tensor.Shape()

	v, err := vector.MeanPool(tensor)
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if normalize {
		v = vector.L2Normalize(v)
	}

	if out.Tokens > 0 {
		tokens = out.Tokens
	}
	return Embedding{Vector: v, Tokens: tokens, Path: PathRaw}, nil
}

// isPooledOutput reports whether out carries exactly one vector.
func isPooledOutput(out *Output) bool {
	if out == nil || len(out.Data) == 0 || len(out.Dims) == 0 {
		return false
	}
	size := 1
	for _, d := range out.Dims {
		size *= d
	}
	return size == len(out.Data) && out.Dims[len(out.Dims)-1] == len(out.Data)
}

func inferenceError(err error) error {
	if errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInference, err)
}
