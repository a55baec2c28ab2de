package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/fyrsmithlabs/embedd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"[a-"}})
	assert.Error(t, err)
}

func TestRedaction_EntryFields(t *testing.T) {
	buf := captureStdout(t)
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)

	logger.Info(context.Background(), "backend configured",
		zap.String("api_key", "sk-live-123"),
		zap.String("Authorization", "Bearer abc.def"),
		zap.String("header", "Bearer xyz"),
		zap.String("base_url", "http://localhost:8081"),
		zap.Int("tokens", 12),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-123")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "xyz")
	assert.Contains(t, out, "http://localhost:8081")
	assert.Contains(t, out, `"tokens":12`)
}

func TestRedaction_WithFields(t *testing.T) {
	buf := captureStdout(t)
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)

	logger.With(zap.String("token", "t0p")).Info(context.Background(), "child")
	assert.NotContains(t, buf.String(), "t0p")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestRedaction_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	b, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{zap.String("api_key", "visible")})
	require.NoError(t, err)
	assert.Contains(t, b.String(), "visible")
}

func TestSecretField(t *testing.T) {
	f := Secret("qdrant_key", config.Secret("abcdef"))
	assert.Equal(t, "[REDACTED:6]", f.String)

	var buf bytes.Buffer
	buf.WriteString(RedactedString("k", "").String)
	assert.Equal(t, "[REDACTED:0]", buf.String())
}
