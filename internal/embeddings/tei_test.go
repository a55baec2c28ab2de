package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTEIServer fakes the three TEI routes used by TEIExtractor.
func newTEIServer(t *testing.T, embedStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req teiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if embedStatus != http.StatusOK {
			http.Error(w, "no pooling", embedStatus)
			return
		}
		vec := []float32{3, 4}
		if req.Normalize {
			vec = []float32{0.6, 0.8}
		}
		_ = json.NewEncoder(w).Encode([][]float32{vec})
	})

	mux.HandleFunc("/embed_all", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][][]float32{{{1, 2}, {3, 4}, {5, 6}}})
	})

	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]teiToken{{{ID: 101, Special: true}, {ID: 7592}, {ID: 102, Special: true}}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTEIConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, TEIConfig{}.Validate(), ErrInvalidConfig)
	assert.NoError(t, TEIConfig{BaseURL: "http://localhost:8081"}.Validate())
}

func TestTEIExtractor_Pooled(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL + "/", Model: "intfloat/e5-small-v2"})
	require.NoError(t, err)

	out, err := ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingMean, Normalize: true})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, out.Data)
	assert.Equal(t, []int{1, 2}, out.Dims)
	assert.Equal(t, 3, out.Tokens)

	out, err = ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingMean})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, out.Data)
}

func TestTEIExtractor_Raw(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingNone})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out.Data)
	assert.Equal(t, []int{1, 3, 2}, out.Dims)
	assert.Equal(t, 3, out.Tokens)
}

func TestTEIExtractor_Errors(t *testing.T) {
	t.Run("missing route is unsupported", func(t *testing.T) {
		srv := newTEIServer(t, http.StatusNotFound)
		ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingMean})
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("server fault is an inference error", func(t *testing.T) {
		srv := newTEIServer(t, http.StatusFailedDependency)
		ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingMean})
		assert.ErrorIs(t, err, ErrInference)
		assert.Contains(t, err.Error(), "424")
	})

	t.Run("unreachable server", func(t *testing.T) {
		ex, err := NewTEIExtractor(TEIConfig{BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err)

		_, err = ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingMean})
		assert.ErrorIs(t, err, ErrInference)
	})

	t.Run("ragged hidden states", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([][][]float32{{{1, 2}, {3}}})
		}))
		defer srv.Close()

		ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = ex.Extract(context.Background(), "hello", ExtractOptions{Pooling: PoolingNone})
		assert.ErrorIs(t, err, ErrShape)
	})
}

func TestTEIExtractor_ThroughAdapter(t *testing.T) {
	srv := newTEIServer(t, http.StatusNotFound)
	ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	a, err := NewAdapter(ex, nil, nil)
	require.NoError(t, err)

	emb, err := a.Embed(context.Background(), "hello", false)
	require.NoError(t, err)
	assert.Equal(t, PathRaw, emb.Path)
	assert.Equal(t, []float32{3, 4}, emb.Vector)
	assert.Equal(t, 3, emb.Tokens)
}

func TestTEIExtractor_PooledWithoutTokenize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{1, 0, 0}})
	})
	mux.HandleFunc("/embed_all", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][][]float32{{{0, 3, 0}, {0, 1, 0}}})
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex, err := NewTEIExtractor(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	a, err := NewAdapter(ex, nil, nil)
	require.NoError(t, err)

	emb, err := a.Embed(context.Background(), "hello world", false)
	require.NoError(t, err)
	assert.Equal(t, PathPooled, emb.Path)
	assert.Equal(t, []float32{1, 0, 0}, emb.Vector)
	assert.Equal(t, 4, emb.Tokens)
}
