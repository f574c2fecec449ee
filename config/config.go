// Package config loads the engine's option table — cache limits,
// migration thresholds, and access-decay parameters — from a TOML file,
// in the style of modules/zeta/config: a typed struct decoded with
// github.com/BurntSushi/toml, an Overwrite method for layering a more
// specific file over a baseline, and an atomic encode that writes
// through a temp file and renames into place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Cache holds the object-cache limits of §4.3.
type Cache struct {
	MaxCount    int `toml:"max-count,omitzero"`
	MaxBytes    int64 `toml:"max-bytes,omitzero"`
	DefaultTTL  int64 `toml:"default-ttl-ms,omitzero"`
	MetricsOn   bool  `toml:"metrics-enabled,omitzero"`
}

// Migration holds the tiered-migration policy knobs of §4.5.
type Migration struct {
	MaxAgeInHotSeconds int64 `toml:"max-age-in-hot-seconds,omitzero"`
	MinAccessCount     int64 `toml:"min-access-count,omitzero"`
	MaxHotSizeBytes    int64 `toml:"max-hot-size-bytes,omitzero"`
	VerifyChecksum     bool  `toml:"verify-checksum,omitzero"`
	LockTimeoutMS      int64 `toml:"lock-timeout-ms,omitzero"`
}

// Decay holds the access-counter decay parameters consumed by
// migrate.AccessTracker.ApplyDecay-style operations.
type Decay struct {
	Factor   float64 `toml:"factor,omitzero"`
	MinAgeMS int64   `toml:"min-age-ms,omitzero"`
}

// Config is the full option table this engine reads from
// <repo>/config.toml.
type Config struct {
	Cache     Cache     `toml:"cache,omitzero"`
	Migration Migration `toml:"migration,omitzero"`
	Decay     Decay     `toml:"decay,omitzero"`
}

func overwriteInt(a, b int) int {
	if b != 0 {
		return b
	}
	return a
}

func overwriteInt64(a, b int64) int64 {
	if b != 0 {
		return b
	}
	return a
}

func overwriteFloat(a, b float64) float64 {
	if b != 0 {
		return b
	}
	return a
}

// Overwrite layers o's non-zero fields on top of c, in place, mirroring
// Core.Overwrite/Fragment.Overwrite for merging a global config over a
// baseline.
func (c *Config) Overwrite(o *Config) {
	c.Cache.MaxCount = overwriteInt(c.Cache.MaxCount, o.Cache.MaxCount)
	c.Cache.MaxBytes = overwriteInt64(c.Cache.MaxBytes, o.Cache.MaxBytes)
	c.Cache.DefaultTTL = overwriteInt64(c.Cache.DefaultTTL, o.Cache.DefaultTTL)
	if o.Cache.MetricsOn {
		c.Cache.MetricsOn = true
	}
	c.Migration.MaxAgeInHotSeconds = overwriteInt64(c.Migration.MaxAgeInHotSeconds, o.Migration.MaxAgeInHotSeconds)
	c.Migration.MinAccessCount = overwriteInt64(c.Migration.MinAccessCount, o.Migration.MinAccessCount)
	c.Migration.MaxHotSizeBytes = overwriteInt64(c.Migration.MaxHotSizeBytes, o.Migration.MaxHotSizeBytes)
	if o.Migration.VerifyChecksum {
		c.Migration.VerifyChecksum = true
	}
	c.Migration.LockTimeoutMS = overwriteInt64(c.Migration.LockTimeoutMS, o.Migration.LockTimeoutMS)
	c.Decay.Factor = overwriteFloat(c.Decay.Factor, o.Decay.Factor)
	c.Decay.MinAgeMS = overwriteInt64(c.Decay.MinAgeMS, o.Decay.MinAgeMS)
}

// Default returns the built-in option table used when no config file is
// present.
func Default() *Config {
	return &Config{
		Cache: Cache{MaxCount: 10_000, MaxBytes: 256 << 20},
		Migration: Migration{
			MaxAgeInHotSeconds: int64((30 * 24 * time.Hour).Seconds()),
			MinAccessCount:     2,
			MaxHotSizeBytes:    10 << 30,
			VerifyChecksum:     true,
			LockTimeoutMS:      5_000,
		},
		Decay: Decay{Factor: 0.5, MinAgeMS: int64((24 * time.Hour).Milliseconds())},
	}
}

// Load decodes the TOML file at path over top of Default(), returning
// Default() unmodified if path does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	var onDisk Config
	if _, err := toml.DecodeFile(path, &onDisk); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Overwrite(&onDisk)
	return cfg, nil
}

// Encode writes cfg to path atomically: encode into a sibling temp
// file, then rename into place, so a crash mid-write never leaves a
// truncated config file behind.
func Encode(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".config-%d.toml", time.Now().UnixNano()))
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
