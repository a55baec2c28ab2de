//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlatformArchive(t *testing.T) {
	tests := []struct {
		goos   string
		goarch string
		want   string
	}{
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-aarch64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := getPlatformArchive(tt.goos, tt.goarch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPlatformArchive_Unsupported(t *testing.T) {
	_, err := getPlatformArchive("windows", "amd64")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestGetLibraryName(t *testing.T) {
	assert.Equal(t, "libonnxruntime.so", getLibraryName("linux"))
	assert.Equal(t, "libonnxruntime.dylib", getLibraryName("darwin"))
	assert.Equal(t, "libonnxruntime.so", getLibraryName("plan9"))
}

func TestGetONNXLibraryPath_EnvOverride(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", GetONNXLibraryPath())
}

func TestCurrentPlatformSupported(t *testing.T) {
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		_, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
		assert.NoError(t, err)
	}
}

func buildTarball(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return &buf
}

func TestExtractLibraries(t *testing.T) {
	prefix := "onnxruntime-linux-x64-1.23.0/lib/"

	t.Run("extracts files under lib", func(t *testing.T) {
		dir := t.TempDir()
		archive := buildTarball(t, map[string]string{
			prefix + "libonnxruntime.so.1.23.0":       "lib",
			prefix + "libonnxruntime.so":              "lib",
			"onnxruntime-linux-x64-1.23.0/README.md": "docs",
		})

		require.NoError(t, extractLibraries(archive, dir, prefix, "libonnxruntime.so"))

		_, err := os.Stat(filepath.Join(dir, "libonnxruntime.so"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "README.md"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("fails without the library", func(t *testing.T) {
		archive := buildTarball(t, map[string]string{
			prefix + "other.so": "x",
		})
		err := extractLibraries(archive, t.TempDir(), prefix, "libonnxruntime.so")
		assert.Error(t, err)
	})
}
