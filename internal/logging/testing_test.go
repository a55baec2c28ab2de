package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Warn(ctx, "falling back to raw path", zap.String("model", "m"), zap.Int("tokens", 3), zap.Bool("normalize", true))

	tl.AssertLogged(t, zapcore.WarnLevel, "raw path")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "raw path")
	tl.AssertField(t, "falling back", "model", "m")
	tl.AssertField(t, "falling back", "tokens", 3)
	tl.AssertField(t, "falling back", "normalize", true)
	assert.Equal(t, 1, tl.FilterMessage("raw").Len())
}

func TestTestLogger_Reset(t *testing.T) {
	tl := NewTestLogger()
	tl.Trace(context.Background(), "very detailed")
	assert.Len(t, tl.All(), 1)
	tl.Reset()
	assert.Empty(t, tl.All())
}
