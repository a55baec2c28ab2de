package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	embeddhttp "github.com/fyrsmithlabs/embedd/internal/http"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the embeddings HTTP server",
		Long: `Start the embeddings HTTP server.

Endpoints:
  GET  /health          embed a probe text and report the vector size
  POST /embed           embed one or more texts
  POST /v1/embeddings   same as /embed, at the OpenAI path
  GET  /metrics         Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

// runServe starts the server and blocks until a shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	zl := a.logger.Underlying()
	srvCfg := a.cfg.Server
	srv, err := embeddhttp.NewServer(a.service, zl, &embeddhttp.Config{
		Host:            srvCfg.Host,
		Port:            srvCfg.Port,
		CORS:            srvCfg.CORS,
		BodyLimit:       srvCfg.BodyLimit,
		RateLimit:       srvCfg.RateLimit,
		RateBurst:       srvCfg.RateBurst,
		ShutdownTimeout: srvCfg.ShutdownTimeout.Duration(),
		Metrics:         embeddhttp.NewHTTPMetrics(zl),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	embeddhttp.RecordBuildInfo(version, a.cfg.Model.ID, a.cfg.Model.Backend, a.service.TargetDim())

	a.logger.Info(ctx, "server configured",
		zap.String("addr", srvCfg.Addr()),
		zap.String("model", a.cfg.Model.ID),
		zap.String("label", a.service.ModelLabel("")),
		zap.Int("target_dim", a.service.TargetDim()),
		zap.Bool("normalize", a.cfg.Embedding.Normalize),
		zap.Bool("cors", srvCfg.CORS),
		zap.Duration("shutdown_timeout", srvCfg.ShutdownTimeout.Duration()),
	)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	a.logger.Info(ctx, "server shutdown complete")
	return nil
}
