package packager

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// TestPack_WritesRelativeEntries zips a small unit tree and checks names and contents.
func TestPack_WritesRelativeEntries(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "my_custom_car")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "ui"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "data.acd"), []byte("acd"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "ui", "ui_car.json"), []byte(`{"name":"x"}`), 0o600))

	out := filepath.Join(t.TempDir(), "uploads")

	path, err := Pack(context.Background(), Options{SourceDir: src, OutputDir: out, Name: "my_custom_car"})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(path))
	require.Equal(t, "my_custom_car.zip", filepath.Base(path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = zr.Close()
	}()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}

	require.Equal(t, []string{"data.acd", "ui/", "ui/ui_car.json"}, names)

	rc, err := zr.File[2].Open()
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.JSONEq(t, `{"name":"x"}`, string(data))

	leftovers, err := filepath.Glob(filepath.Join(out, ".*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// TestPack_MissingSource verifies that a missing directory is reported as ErrPackaging.
func TestPack_MissingSource(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	_, err := Pack(context.Background(), Options{
		SourceDir: filepath.Join(out, "missing"),
		OutputDir: out,
		Name:      "missing",
	})
	require.ErrorIs(t, err, ErrPackaging)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoFileExists(t, filepath.Join(out, "missing.zip"))
}

// TestPack_SourceIsFile rejects a regular file as the source.
func TestPack_SourceIsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := Pack(context.Background(), Options{SourceDir: file, OutputDir: dir, Name: "file"})
	require.ErrorIs(t, err, ErrPackaging)
	require.ErrorIs(t, err, errNotDirectory)
}

// TestPack_CanceledContext leaves no archive when the run is aborted.
func TestPack_CanceledContext(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := t.TempDir()

	_, err := Pack(ctx, Options{SourceDir: src, OutputDir: out, Name: "unit"})
	require.ErrorIs(t, err, ErrPackaging)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Empty(t, entries)
}
