package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tarball(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestExtractLibs(t *testing.T) {
	dest := t.TempDir()
	prefix := "onnxruntime-linux-x64-1.23.0/lib/"
	buf := tarball(t, map[string]string{
		"./" + prefix + "libonnxruntime.so.1.23.0": "elf",
		prefix + "libonnxruntime_providers.so":     "elf2",
		"onnxruntime-linux-x64-1.23.0/README.md":   "docs",
	})

	require.NoError(t, extractLibs(buf, dest, prefix, "libonnxruntime.so"))

	_, err := os.Stat(filepath.Join(dest, "libonnxruntime.so.1.23.0"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "README.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractLibs_MissingLibrary(t *testing.T) {
	buf := tarball(t, map[string]string{"other/lib/libfoo.so": "x"})
	err := extractLibs(buf, t.TempDir(), "other/lib/", "libonnxruntime.so")
	assert.ErrorContains(t, err, "not found in archive")
}

func TestPlatformArchive(t *testing.T) {
	arch, err := platformArchive("linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "linux-x64", arch)

	_, err = platformArchive("plan9", "386")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestGetONNXLibraryPath_Env(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", GetONNXLibraryPath())
}
