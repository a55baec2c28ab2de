package embeddings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/embedd/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeExtractor returns canned outputs per pooling mode.
type fakeExtractor struct {
	pooled    *Output
	pooledErr error
	raw       *Output
	rawErr    error

	calls    []ExtractOptions
	inFlight atomic.Int32
	overlap  atomic.Bool
	mu       sync.Mutex
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, opts ExtractOptions) (*Output, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	if opts.Pooling == PoolingMean {
		return f.pooled, f.pooledErr
	}
	return f.raw, f.rawErr
}

func (f *fakeExtractor) Model() string { return "fake-model" }
func (f *fakeExtractor) Close() error  { return nil }

func TestNewAdapter_RequiresExtractor(t *testing.T) {
	_, err := NewAdapter(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAdapter_PooledPath(t *testing.T) {
	ex := &fakeExtractor{
		pooled: &Output{Data: []float32{0.6, 0.8}, Dims: []int{1, 2}, Tokens: 5},
	}
	a, err := NewAdapter(ex, nil, nil)
	require.NoError(t, err)

	emb, err := a.Embed(context.Background(), "hello", true)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.6, 0.8}, emb.Vector)
	assert.Equal(t, 5, emb.Tokens)
	assert.Equal(t, PathPooled, emb.Path)
	require.Len(t, ex.calls, 1)
	assert.Equal(t, ExtractOptions{Pooling: PoolingMean, Normalize: true}, ex.calls[0])
}

func TestAdapter_FallbackToRaw(t *testing.T) {
	raw := &Output{
		Data: []float32{
			1, 2,
			3, 2,
		},
		Dims: []int{1, 2, 2},
	}

	tests := []struct {
		name      string
		pooled    *Output
		pooledErr error
	}{
		{name: "unsupported error", pooledErr: ErrUnsupported},
		{name: "nil output", pooled: nil},
		{name: "missing data", pooled: &Output{Dims: []int{1, 2}}},
		{name: "missing dims", pooled: &Output{Data: []float32{1, 2}}},
		{name: "tensor instead of vector", pooled: &Output{Data: []float32{1, 2, 3, 4}, Dims: []int{1, 2, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{pooled: tt.pooled, pooledErr: tt.pooledErr, raw: raw}
			a, err := NewAdapter(ex, nil, nil)
			require.NoError(t, err)

			emb, err := a.Embed(context.Background(), "hello", false)
			require.NoError(t, err)

			assert.Equal(t, PathRaw, emb.Path)
			assert.Equal(t, []float32{2, 2}, emb.Vector)
			assert.Equal(t, 2, emb.Tokens, "token count falls back to T")
			require.Len(t, ex.calls, 2)
			assert.Equal(t, PoolingNone, ex.calls[1].Pooling)
		})
	}
}

func TestAdapter_RawPathNormalizes(t *testing.T) {
	ex := &fakeExtractor{
		pooledErr: ErrUnsupported,
		raw:       &Output{Data: []float32{3, 4, 3, 4}, Dims: []int{1, 2, 2}, Tokens: 7},
	}
	a, err := NewAdapter(ex, nil, nil)
	require.NoError(t, err)

	emb, err := a.Embed(context.Background(), "hello", true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, emb.Vector, 1e-6)
	assert.InDelta(t, 1.0, vector.Norm(emb.Vector), 1e-6)
	assert.Equal(t, 7, emb.Tokens)
}

func TestAdapter_Errors(t *testing.T) {
	boom := errors.New("model load failure")

	t.Run("pooled path fault is not retried", func(t *testing.T) {
		ex := &fakeExtractor{pooledErr: boom}
		a, err := NewAdapter(ex, nil, nil)
		require.NoError(t, err)

		_, err = a.Embed(context.Background(), "hello", true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInference)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, ex.calls, 1)
	})

	t.Run("raw path fault", func(t *testing.T) {
		ex := &fakeExtractor{pooledErr: ErrUnsupported, rawErr: boom}
		a, err := NewAdapter(ex, nil, nil)
		require.NoError(t, err)

		_, err = a.Embed(context.Background(), "hello", true)
		assert.ErrorIs(t, err, ErrInference)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("raw path shape error", func(t *testing.T) {
		ex := &fakeExtractor{
			pooledErr: ErrUnsupported,
			raw:       &Output{Data: []float32{1, 2, 3}, Dims: []int{1, 2, 2}},
		}
		a, err := NewAdapter(ex, nil, nil)
		require.NoError(t, err)

		_, err = a.Embed(context.Background(), "hello", true)
		assert.ErrorIs(t, err, ErrInference)
		assert.ErrorIs(t, err, ErrShape)
	})

	t.Run("raw path empty output", func(t *testing.T) {
		ex := &fakeExtractor{pooledErr: ErrUnsupported}
		a, err := NewAdapter(ex, nil, nil)
		require.NoError(t, err)

		_, err = a.Embed(context.Background(), "hello", true)
		assert.ErrorIs(t, err, ErrShape)
	})
}

func TestAdapter_SerializesCalls(t *testing.T) {
	ex := &fakeExtractor{
		pooled: &Output{Data: []float32{1}, Dims: []int{1, 1}, Tokens: 1},
	}
	a, err := NewAdapter(ex, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Embed(context.Background(), "hello", true)
		}()
	}
	wg.Wait()

	assert.False(t, ex.overlap.Load(), "extractor calls overlapped")
	assert.Len(t, ex.calls, 16)
}

func TestAdapter_DoesNotAliasBackendBuffer(t *testing.T) {
	out := &Output{Data: []float32{1, 0}, Dims: []int{2}}
	a, err := NewAdapter(&fakeExtractor{pooled: out}, nil, nil)
	require.NoError(t, err)

	emb, err := a.Embed(context.Background(), "x", true)
	require.NoError(t, err)
	emb.Vector[0] = 42
	assert.Equal(t, float32(1), out.Data[0])
}

// unitExtractor always returns unit vectors on the pooled path.
type unitExtractor struct {
	fakeExtractor
}

func (u *unitExtractor) AlwaysNormalizes() bool { return true }

func TestAdapter_WarnsWhenNormalizeIsIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ex := &unitExtractor{fakeExtractor{
		pooled: &Output{Data: []float32{0.6, 0.8}, Dims: []int{1, 2}, Tokens: 2},
	}}
	a, err := NewAdapter(ex, nil, zap.New(core))
	require.NoError(t, err)

	_, err = a.Embed(context.Background(), "a", true)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())

	for i := 0; i < 3; i++ {
		emb, err := a.Embed(context.Background(), "a", false)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.6, 0.8}, emb.Vector)
	}
	assert.Equal(t, 1, logs.FilterMessageSnippet("normalize=false has no effect").Len())
}

func TestAlwaysNormalizes(t *testing.T) {
	assert.False(t, AlwaysNormalizes(&fakeExtractor{}))
	assert.True(t, AlwaysNormalizes(&unitExtractor{}))
	assert.True(t, AlwaysNormalizes(&FastEmbedExtractor{}))

	tei, err := NewTEIExtractor(TEIConfig{BaseURL: "http://localhost:8081"})
	require.NoError(t, err)
	assert.False(t, AlwaysNormalizes(tei))
}
