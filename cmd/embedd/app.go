package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/embedd/internal/config"
	"github.com/fyrsmithlabs/embedd/internal/embeddings"
	"github.com/fyrsmithlabs/embedd/internal/logging"
	"github.com/fyrsmithlabs/embedd/internal/pipeline"
	"github.com/fyrsmithlabs/embedd/internal/qdrant"
	"github.com/fyrsmithlabs/embedd/internal/telemetry"
)

// app holds everything built at startup. The extractor is the one model
// handle of the process and is shared by all requests.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	extractor embeddings.Extractor
	service   *pipeline.Service
}

// newApp loads configuration and builds the embedding service. Console logs
// go to stderr when logToStderr is set.
//
// Initialization order:
//  1. Configuration
//  2. Telemetry, so instruments created later export
//  3. Logger
//  4. Inference backend, which may download the model
//  5. Adapter and pipeline service
//  6. Qdrant dimension reconciliation, when a collection is configured
func newApp(ctx context.Context, configPath string, logToStderr bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel.IsEnabled(), logToStderr)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel}
	if err := a.initService(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func initLogger(cfg *config.Config, otelEnabled, logToStderr bool) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging, otelEnabled)
	if err != nil {
		return nil, err
	}
	if logToStderr {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}

	var provider otellog.LoggerProvider
	if otelEnabled {
		provider = global.GetLoggerProvider()
	}
	return logging.NewLogger(logCfg, provider)
}

func (a *app) initService(ctx context.Context) error {
	zl := a.logger.Underlying()

	a.logger.Info(ctx, "loading embedding model",
		zap.String("model", a.cfg.Model.ID),
		zap.String("backend", a.cfg.Model.Backend),
	)
	start := time.Now()
	extractor, err := embeddings.NewExtractor(ctx, embeddings.ProviderConfig{
		Backend:   a.cfg.Model.Backend,
		Model:     a.cfg.Model.ID,
		BaseURL:   a.cfg.Model.BaseURL,
		APIKey:    a.cfg.Model.APIKey.Value(),
		CacheDir:  a.cfg.Model.CacheDir,
		MaxLength: a.cfg.Model.MaxLength,
	}, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding backend: %w", err)
	}
	a.extractor = extractor
	a.logger.Info(ctx, "embedding model ready",
		zap.String("model", extractor.Model()),
		zap.Duration("duration", time.Since(start)),
	)
	warnFixedNormalization(ctx, a.logger, extractor, a.cfg.Embedding.Normalize)

	adapter, err := embeddings.NewAdapter(extractor, embeddings.NewMetrics(zl), zl)
	if err != nil {
		return fmt.Errorf("failed to create inference adapter: %w", err)
	}

	svc, err := pipeline.NewService(adapter, pipeline.Config{
		ModelID:      a.cfg.Model.ID,
		Label:        a.cfg.Model.Label,
		Normalize:    a.cfg.Embedding.Normalize,
		TargetDim:    a.cfg.Embedding.TargetDim,
		PrefixFamily: a.cfg.Model.PrefixFamily,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}
	a.service = svc

	a.reconcileDimension(ctx)
	return nil
}

// warnFixedNormalization flags a normalize=false default that the backend
// cannot honor.
func warnFixedNormalization(ctx context.Context, logger *logging.Logger, ex embeddings.Extractor, normalize bool) {
	if normalize || !embeddings.AlwaysNormalizes(ex) {
		return
	}
	logger.Warn(ctx, "backend always returns unit vectors; embedding.normalize=false is ignored",
		zap.String("model", ex.Model()),
	)
}

// reconcileDimension matches the output dimension to the configured Qdrant
// collection. Lookup failures keep the configured dimension.
func (a *app) reconcileDimension(ctx context.Context) {
	q := a.cfg.Qdrant
	if !q.Enabled() {
		return
	}

	probe, err := qdrant.NewProbe(&qdrant.ClientConfig{
		Host:   q.Host,
		Port:   q.Port,
		UseTLS: q.UseTLS,
		APIKey: q.APIKey.Value(),
	}, a.logger)
	if err != nil {
		a.logger.Warn(ctx, "qdrant unavailable; keeping configured dimension",
			zap.String("collection", q.Collection),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = probe.Close() }()

	a.service.SetTargetDim(probe.ReconcileTargetDim(ctx, q.Collection, a.service.TargetDim()))
}

// Close releases the model and flushes telemetry and logs.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.extractor != nil {
		if err := a.extractor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close extractor: %w", err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync() // Best-effort sync on shutdown
}
