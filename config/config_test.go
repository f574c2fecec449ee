package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestEncodeThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Cache.MaxCount = 42
	cfg.Migration.MinAccessCount = 7
	require.NoError(t, Encode(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, got.Cache.MaxCount)
	require.Equal(t, int64(7), got.Migration.MinAccessCount)
}

func TestOverwriteOnlyAppliesNonZeroFields(t *testing.T) {
	base := Default()
	override := &Config{Migration: Migration{MinAccessCount: 99}}
	base.Overwrite(override)
	require.Equal(t, int64(99), base.Migration.MinAccessCount)
	require.Equal(t, Default().Cache.MaxCount, base.Cache.MaxCount)
}
