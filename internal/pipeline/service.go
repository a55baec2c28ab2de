package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/embedd/internal/embeddings"
	"github.com/fyrsmithlabs/embedd/internal/logging"
	"github.com/fyrsmithlabs/embedd/internal/vector"
)

const tracerName = "github.com/fyrsmithlabs/embedd/internal/pipeline"

// HealthProbeText is embedded by Health to prove the model answers.
const HealthProbeText = "health check"

// Embedder is the per-text inference step. *embeddings.Adapter satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string, normalize bool) (embeddings.Embedding, error)
	Model() string
}

// Config controls request processing.
type Config struct {
	// ModelID identifies the loaded model. It also drives prefix detection.
	ModelID string
	// Label is reported in responses when the request names no model.
	Label string
	// Normalize is the default L2 normalization toggle.
	Normalize bool
	// TargetDim pads or truncates every vector when > 0.
	TargetDim int
	// PrefixFamily is the model-id substring that enables query/passage
	// prefixes. Empty disables prefixes.
	PrefixFamily string
}

// Service runs embeddings requests end to end.
type Service struct {
	embedder Embedder
	prefix   embeddings.PrefixStrategy
	cfg      Config
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewService creates a Service over embedder.
func NewService(embedder Embedder, cfg Config, logger *logging.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", embeddings.ErrInvalidConfig)
	}
	if cfg.TargetDim < 0 {
		return nil, fmt.Errorf("%w: target dimension must be >= 0, got %d", embeddings.ErrInvalidConfig, cfg.TargetDim)
	}
	if cfg.ModelID == "" {
		cfg.ModelID = embedder.Model()
	}
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return &Service{
		embedder: embedder,
		prefix:   embeddings.NewPrefixStrategy(cfg.ModelID, cfg.PrefixFamily),
		cfg:      cfg,
		logger:   logger.Named("pipeline"),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// TargetDim returns the configured output dimension, 0 meaning native.
func (s *Service) TargetDim() int {
	return s.cfg.TargetDim
}

// SetTargetDim replaces the output dimension. It is meant for startup
// reconciliation, before requests are served.
func (s *Service) SetTargetDim(dim int) {
	if dim >= 0 {
		s.cfg.TargetDim = dim
	}
}

// ModelLabel returns the label reported for a request naming requested.
func (s *Service) ModelLabel(requested string) string {
	if requested != "" {
		return requested
	}
	if s.cfg.Label != "" {
		return s.cfg.Label
	}
	return s.cfg.ModelID
}

// Embed processes req and returns the success envelope, or the failure
// envelope together with the error that caused it.
func (s *Service) Embed(ctx context.Context, req Request) (*Response, error) {
	texts := NormalizeInput(req.Input)
	role := embeddings.ParseRole(req.Type)
	normalize := s.cfg.Normalize
	if req.Normalize != nil {
		normalize = *req.Normalize
	}

	ctx, span := s.tracer.Start(ctx, "pipeline.Embed",
		trace.WithAttributes(
			attribute.Int("embedd.batch_size", len(texts)),
			attribute.String("embedd.role", string(role)),
			attribute.Bool("embedd.normalize", normalize),
		),
	)
	defer span.End()

	start := time.Now()
	asm := NewAssembler(s.ModelLabel(req.Model), ParseEncodingFormat(req.EncodingFormat), len(texts))

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, span, asm, i, err)
		}

		emb, err := s.embedder.Embed(ctx, s.prefix.Apply(text, role), normalize)
		if err != nil {
			return s.fail(ctx, span, asm, i, err)
		}

		vec := emb.Vector
		if s.cfg.TargetDim > 0 {
			vec = vector.AdjustDimension(vec, s.cfg.TargetDim)
		}
		asm.Add(vec, emb.Tokens)
	}

	resp := asm.Response()
	span.SetAttributes(attribute.Int("embedd.tokens", resp.Usage.TotalTokens))
	s.logger.Debug(ctx, "embedded batch",
		zap.Int("count", len(texts)),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, asm *Assembler, index int, err error) (*Response, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error(ctx, "embedding batch failed",
		zap.Int("index", index),
		zap.Error(err),
	)
	return asm.Failure(err), fmt.Errorf("embedding input %d: %w", index, err)
}

// Health is the body of GET /health.
type Health struct {
	OK        bool   `json:"ok"`
	Model     string `json:"model"`
	Dim       int    `json:"dim,omitempty"`
	BaseDim   int    `json:"base_dim,omitempty"`
	TargetDim int    `json:"target_dim,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Health embeds HealthProbeText and reports the vector dimensions. When a
// target dimension is set both the native and the target size are shown.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	h := &Health{Model: s.cfg.ModelID}

	emb, err := s.embedder.Embed(ctx, HealthProbeText, s.cfg.Normalize)
	if err == nil && len(emb.Vector) == 0 {
		err = errors.New("model returned an empty vector")
	}
	if err != nil {
		h.Error = err.Error()
		s.logger.Warn(ctx, "health probe failed", zap.Error(err))
		return h, err
	}

	h.OK = true
	if s.cfg.TargetDim > 0 {
		h.BaseDim = len(emb.Vector)
		h.TargetDim = s.cfg.TargetDim
	} else {
		h.Dim = len(emb.Vector)
	}
	return h, nil
}
