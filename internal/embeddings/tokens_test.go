package embeddings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproxCounter(t *testing.T) {
	c := NewApproxCounter(0)

	n, err := c.CountTokens("hello world")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = c.CountTokens(" ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestApproxCounter_MaxLength(t *testing.T) {
	c := NewApproxCounter(3)
	n, err := c.CountTokens("one two three four")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNewTokenizerCounter_MissingFile(t *testing.T) {
	_, err := NewTokenizerCounter(filepath.Join(t.TempDir(), "tokenizer.json"), 512)
	assert.Error(t, err)
}
