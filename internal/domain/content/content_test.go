package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDefaultBaseline checks a few well-known units from the embedded list.
func TestDefaultBaseline(t *testing.T) {
	t.Parallel()

	b := DefaultBaseline()

	require.True(t, b.Contains("ks_toyota_ae86", Car))
	require.True(t, b.Contains("p4-5_2011", Car))
	require.True(t, b.Contains("spa", Track))
	require.True(t, b.Contains("trento-bondone", Track))
	require.False(t, b.Contains("spa", Car))
	require.False(t, b.Contains("my_custom_car", Car))
	require.Equal(t, 20, b.Len(Track))
	require.Same(t, b, DefaultBaseline())
}

// TestLoadBaseline reads an override file.
func TestLoadBaseline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cars: [a, b]\ntracks: [c]\n"), 0o600))

	b, err := LoadBaseline(path)
	require.NoError(t, err)
	require.True(t, b.Contains("a", Car))
	require.True(t, b.Contains("c", Track))
	require.Equal(t, 2, b.Len(Car))

	_, err = LoadBaseline(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseBaseline([]byte("cars: {"))
	require.Error(t, err)
}

// TestNilBaseline ensures a nil registry treats everything as new content.
func TestNilBaseline(t *testing.T) {
	t.Parallel()

	var b *Baseline

	require.False(t, b.Contains("ks_toyota_ae86", Car))
	require.Zero(t, b.Len(Car))
}

// TestUnitPaths verifies storage and archive naming per category.
func TestUnitPaths(t *testing.T) {
	t.Parallel()

	require.Equal(t, "cars/my_custom_car.zip", Unit{Name: "my_custom_car", Category: Car}.ObjectPath())
	require.Equal(t, "tracks/nordschleife.zip", Unit{Name: "nordschleife", Category: Track}.ObjectPath())
	require.Equal(t, "content/tracks/", Track.ArchivePrefix())
	require.Equal(t, "cars/x", Unit{Name: "x", Category: Car}.String())
	require.False(t, Category("boat").Valid())
	require.Empty(t, Category("boat").Dir())
}
