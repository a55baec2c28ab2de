package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory and blanks every environment
// name the loader reads, so the host environment cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for name := range bareEnv {
		t.Setenv(name, "")
	}
	for _, name := range []string{
		"EMBEDD_SERVER_PORT", "EMBEDD_MODEL_ID", "EMBEDD_MODEL_BACKEND",
		"EMBEDD_EMBEDDING_TARGET_DIM", "EMBEDD_LOGGING_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return home
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.CORS)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "4M", cfg.Server.BodyLimit)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Model.ID)
	assert.Equal(t, BackendFastEmbed, cfg.Model.Backend)
	assert.Equal(t, 512, cfg.Model.MaxLength)
	assert.Equal(t, "e5", cfg.Model.PrefixFamily)
	assert.True(t, cfg.Embedding.Normalize)
	assert.Zero(t, cfg.Embedding.TargetDim)
	assert.False(t, cfg.Qdrant.Enabled())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_YAML(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
server:
  port: 9000
  cors: false
  shutdown_timeout: 3s
model:
  id: intfloat/e5-small-v2
  backend: TEI
  base_url: http://tei:80/
  label: text-embedding-3-small
embedding:
  normalize: false
  target_dim: 1536
qdrant:
  collection: docs
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Server.CORS)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "intfloat/e5-small-v2", cfg.Model.ID)
	assert.Equal(t, BackendTEI, cfg.Model.Backend)
	assert.Equal(t, "http://tei:80", cfg.Model.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Model.Label)
	assert.False(t, cfg.Embedding.Normalize)
	assert.Equal(t, 1536, cfg.Embedding.TargetDim)
	assert.True(t, cfg.Qdrant.Enabled())
	assert.Equal(t, 6334, cfg.Qdrant.Port, "unset keys keep their defaults")
	assert.Equal(t, 512, cfg.Model.MaxLength)
}

func TestLoad_DefaultPathUsedWhenPresent(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "embedd")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	writeConfig(t, dir, "server:\n  port: 7000\n", 0o600)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "server:\n  port: 9000\nmodel:\n  id: from-yaml\n", 0o600)

	t.Setenv("EMBEDD_SERVER_PORT", "9100")
	t.Setenv("EMBEDD_MODEL_ID", "from-prefixed-env")
	t.Setenv("MODEL_ID", "from-bare-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port, "EMBEDD_* beats YAML")
	assert.Equal(t, "from-bare-env", cfg.Model.ID, "bare names beat EMBEDD_*")
}

func TestLoad_BareEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("CORS", "false")
	t.Setenv("NORMALIZE", "false")
	t.Setenv("TARGET_DIM", "768")
	t.Setenv("MODEL_LABEL", "ada")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.False(t, cfg.Server.CORS)
	assert.False(t, cfg.Embedding.Normalize)
	assert.Equal(t, 768, cfg.Embedding.TargetDim)
	assert.Equal(t, "ada", cfg.Model.Label)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_PrefixedEnvCompoundField(t *testing.T) {
	isolate(t)
	t.Setenv("EMBEDD_SERVER_SHUTDOWN_TIMEOUT", "45s")
	t.Setenv("EMBEDD_QDRANT_API_KEY", "qk")
	t.Setenv("EMBEDD_MODEL_PREFIX_FAMILY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "qk", cfg.Qdrant.APIKey.Value())
	assert.Equal(t, "e5", cfg.Model.PrefixFamily, "blank values are ignored")
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit path missing", func(t *testing.T) {
		dir := isolate(t)
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("world writable", func(t *testing.T) {
		dir := isolate(t)
		path := writeConfig(t, dir, "server:\n  port: 1\n", 0o666)
		_, err := Load(path)
		assert.ErrorContains(t, err, "permissions")
	})

	t.Run("too large", func(t *testing.T) {
		dir := isolate(t)
		big := make([]byte, maxConfigFileSize+10)
		for i := range big {
			big[i] = '#'
		}
		path := writeConfig(t, dir, string(big), 0o600)
		_, err := Load(path)
		assert.ErrorContains(t, err, "too large")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := isolate(t)
		path := writeConfig(t, dir, "server: [unclosed", 0o600)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		isolate(t)
		t.Setenv("PORT", "70000")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"shutdown zero", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"burst with rate", func(c *Config) { c.Server.RateLimit = 5; c.Server.RateBurst = 0 }, "rate_burst"},
		{"burst without rate", func(c *Config) { c.Server.RateBurst = 0 }, ""},
		{"unknown backend", func(c *Config) { c.Model.Backend = "onnx" }, "model.backend"},
		{"tei without url", func(c *Config) { c.Model.Backend = BackendTEI; c.Model.BaseURL = "" }, "base_url"},
		{"empty model", func(c *Config) { c.Model.ID = "" }, "model.id"},
		{"max length", func(c *Config) { c.Model.MaxLength = 0 }, "max_length"},
		{"negative target", func(c *Config) { c.Embedding.TargetDim = -1 }, "target_dim"},
		{"qdrant port", func(c *Config) { c.Qdrant.Collection = "c"; c.Qdrant.Port = 0 }, "qdrant.port"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"telemetry protocol", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Protocol = "udp" }, "telemetry.protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", Default().Server.Addr())
}
