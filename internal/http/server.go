// Package http serves the embeddings API over Echo.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/embedd/internal/logging"
	"github.com/fyrsmithlabs/embedd/internal/pipeline"
)

var errRateLimited = errors.New("rate limit exceeded")

const (
	routeHealth     = "/health"
	routeEmbed      = "/embed"
	routeEmbeddings = "/v1/embeddings"
	routeMetrics    = "/metrics"
)

// Server provides the HTTP endpoints for embedd.
type Server struct {
	echo    *echo.Echo
	service *pipeline.Service
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// CORS enables permissive cross-origin headers.
	CORS bool
	// BodyLimit uses echo's size syntax, e.g. "4M". Empty disables it.
	BodyLimit string
	// RateLimit is requests per second per client IP. 0 disables limiting.
	RateLimit float64
	RateBurst int
	// ShutdownTimeout bounds graceful shutdown in Start.
	ShutdownTimeout time.Duration
	// Metrics records HTTP metrics when non-nil.
	Metrics *HTTPMetrics
}

// DefaultConfig returns the configuration used when NewServer gets nil.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		CORS:            true,
		BodyLimit:       "4M",
		RateBurst:       20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new HTTP server.
func NewServer(service *pipeline.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("embedding service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return nil, fmt.Errorf("rate burst must be >= 1 when rate limiting is on, got %d", cfg.RateBurst)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
		metrics: cfg.Metrics,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger)
	if cfg.CORS {
		e.Use(middleware.CORS())
	}
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RateLimit > 0 {
		e.Use(s.rateLimiter())
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let echo write the error response so the status below is final.
			c.Error(err)
		}

		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)

		return nil
	}
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.RateLimit),
		Burst:     s.config.RateBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == routeHealth || c.Path() == routeMetrics
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Debug("request rate limited", zap.String("client", identifier))
			return c.JSON(http.StatusTooManyRequests, pipeline.FailureResponse(s.service.ModelLabel(""), errRateLimited))
		},
	})
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET(routeHealth, s.handleHealth)
	s.echo.POST(routeEmbed, s.handleEmbed)
	s.echo.POST(routeEmbeddings, s.handleEmbed)
	s.echo.GET(routeMetrics, echo.WrapHandler(promhttp.Handler()))

	if s.metrics != nil {
		s.metrics.Track(routeHealth, routeEmbed, routeEmbeddings, routeMetrics)
	}
}

// handleError writes middleware and handler errors. Embed routes always
// answer with the failure envelope, including 413 and 429 rejections.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if p := c.Path(); p != routeEmbed && p != routeEmbeddings {
		s.echo.DefaultHTTPErrorHandler(err, c)
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		err = fmt.Errorf("%v", he.Message)
	}
	if werr := c.JSON(code, pipeline.FailureResponse(s.service.ModelLabel(""), err)); werr != nil {
		s.logger.Warn("writing error response", zap.Error(werr))
	}
}

// handleHealth embeds a probe text and reports the vector size.
func (s *Server) handleHealth(c echo.Context) error {
	h, err := s.service.Health(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, h)
	}
	return c.JSON(http.StatusOK, h)
}

// handleEmbed serves POST /embed and POST /v1/embeddings.
func (s *Server) handleEmbed(c echo.Context) error {
	req, err := decodeRequest(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		s.logger.Warn("invalid embed request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, pipeline.FailureResponse(s.service.ModelLabel(""), err))
	}

	resp, err := s.service.Embed(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// decodeRequest reads a JSON request body. An empty body is an empty
// request, which embeds the placeholder text.
func decodeRequest(body io.Reader) (pipeline.Request, error) {
	var req pipeline.Request
	if body == nil {
		return req, nil
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return pipeline.Request{}, nil
		}
		return pipeline.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout. It returns http.ErrServerClosed after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultConfig().ShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for registering additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
