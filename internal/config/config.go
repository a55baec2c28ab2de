// Package config provides configuration loading for embedd.
//
// Values come from defaults, an optional YAML file, EMBEDD_* environment
// variables and a small set of bare environment names kept for drop-in
// compatibility, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Backend names accepted in model.backend.
const (
	BackendFastEmbed = "fastembed"
	BackendTEI       = "tei"
)

// Config holds the complete embedd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	CORS            bool     `koanf:"cors"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// BodyLimit uses echo's size syntax, e.g. "4M".
	BodyLimit string `koanf:"body_limit"`
	// RateLimit is requests per second per client IP. 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig selects and locates the embedding model.
type ModelConfig struct {
	ID           string `koanf:"id"`
	Backend      string `koanf:"backend"`
	BaseURL      string `koanf:"base_url"`
	APIKey       Secret `koanf:"api_key"`
	CacheDir     string `koanf:"cache_dir"`
	MaxLength    int    `koanf:"max_length"`
	Label        string `koanf:"label"`
	PrefixFamily string `koanf:"prefix_family"`
}

// EmbeddingConfig controls vector post-processing.
type EmbeddingConfig struct {
	Normalize bool `koanf:"normalize"`
	TargetDim int  `koanf:"target_dim"`
}

// QdrantConfig points at a collection whose vector size the service should
// match. Leaving Collection empty disables the check.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
}

// Enabled reports whether a collection is configured.
func (q QdrantConfig) Enabled() bool {
	return q.Collection != ""
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORS:            true,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "4M",
			RateBurst:       20,
		},
		Model: ModelConfig{
			ID:           "BAAI/bge-small-en-v1.5",
			Backend:      BackendFastEmbed,
			BaseURL:      "http://localhost:8081",
			CacheDir:     "./local_cache",
			MaxLength:    512,
			PrefixFamily: "e5",
		},
		Embedding: EmbeddingConfig{
			Normalize: true,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "embedd",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		add("server.shutdown_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit must be >= 0, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add("server.rate_burst must be >= 1 when rate limiting is on, got %d", c.Server.RateBurst)
	}

	switch strings.ToLower(c.Model.Backend) {
	case BackendFastEmbed:
	case BackendTEI:
		if c.Model.BaseURL == "" {
			add("model.base_url is required for the %s backend", BackendTEI)
		}
	default:
		add("model.backend must be %q or %q, got %q", BackendFastEmbed, BackendTEI, c.Model.Backend)
	}
	if c.Model.ID == "" {
		add("model.id is required")
	}
	if c.Model.MaxLength < 1 {
		add("model.max_length must be >= 1, got %d", c.Model.MaxLength)
	}

	if c.Embedding.TargetDim < 0 {
		add("embedding.target_dim must be >= 0, got %d", c.Embedding.TargetDim)
	}

	if c.Qdrant.Enabled() && (c.Qdrant.Port < 1 || c.Qdrant.Port > 65535) {
		add("qdrant.port must be 1-65535, got %d", c.Qdrant.Port)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		add("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "grpc", "http", "http/protobuf":
		default:
			add("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
