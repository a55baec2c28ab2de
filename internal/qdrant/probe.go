package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/embedd/internal/logging"
)

// Probe looks up collection vector sizes.
type Probe struct {
	client CollectionReader
	config *ClientConfig
	logger *logging.Logger
}

// NewProbe connects to Qdrant.
func NewProbe(cfg *ClientConfig, logger *logging.Logger) (*Probe, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return newProbe(client, cfg, logger), nil
}

func newProbe(client CollectionReader, cfg *ClientConfig, logger *logging.Logger) *Probe {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Probe{
		client: client,
		config: cfg,
		logger: logger.Named("qdrant"),
	}
}

// VectorSize returns the dimension of the vectors stored in collection.
// A collection with named vectors reports their size when all agree.
func (p *Probe) VectorSize(ctx context.Context, collection string) (int, error) {
	var info *qdrant.CollectionInfo
	err := p.retry(ctx, func(ctx context.Context) error {
		var err error
		info, err = p.client.GetCollectionInfo(ctx, collection)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return 0, fmt.Errorf("reading collection %s: %w", collection, err)
	}

	size, err := vectorSize(info)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", collection, err)
	}
	return size, nil
}

// Close closes the client connection.
func (p *Probe) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func vectorSize(info *qdrant.CollectionInfo) (int, error) {
	vc := info.GetConfig().GetParams().GetVectorsConfig()
	if size := vc.GetParams().GetSize(); size > 0 {
		return int(size), nil
	}

	var size uint64
	for _, params := range vc.GetParamsMap().GetMap() {
		switch {
		case size == 0:
			size = params.GetSize()
		case params.GetSize() != size:
			return 0, ErrNoVectorSize
		}
	}
	if size == 0 {
		return 0, ErrNoVectorSize
	}
	return int(size), nil
}

func (p *Probe) retry(ctx context.Context, op func(context.Context) error) error {
	backoff := p.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= p.config.RetryAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
		err := op(reqCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == p.config.RetryAttempts {
			break
		}

		p.logger.Debug(ctx, "retrying qdrant request after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}

// Reconcile decides the output dimension given the configured target and the
// collection's vector size. A zero target adopts the collection size. A
// conflicting target is kept and reported.
func Reconcile(configured, collection int) (dim int, conflict bool) {
	switch {
	case collection <= 0:
		return configured, false
	case configured == 0:
		return collection, false
	case configured != collection:
		return configured, true
	}
	return configured, false
}

// ReconcileTargetDim looks up collection and applies Reconcile, logging the
// outcome. Lookup failures leave configured unchanged.
func (p *Probe) ReconcileTargetDim(ctx context.Context, collection string, configured int) int {
	size, err := p.VectorSize(ctx, collection)
	if err != nil {
		p.logger.Warn(ctx, "could not read collection vector size; keeping configured dimension",
			zap.String("collection", collection),
			zap.Int("target_dim", configured),
			zap.Error(err),
		)
		return configured
	}

	dim, conflict := Reconcile(configured, size)
	if conflict {
		p.logger.Warn(ctx, "configured target dimension differs from collection vector size",
			zap.String("collection", collection),
			zap.Int("target_dim", configured),
			zap.Int("collection_dim", size),
		)
		return dim
	}
	p.logger.Info(ctx, "output dimension matched to collection",
		zap.String("collection", collection),
		zap.Int("target_dim", dim),
	)
	return dim
}
