// Package config loads cooldown tuning parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CooldownConfig holds the per-scan-size cooldown table used when the host
// does not report a cooldown, and by the simulated host to generate one.
// All fields are optional; omitted fields fall back to the host game's
// published table via the Get* accessors, so partial configs are safe.
type CooldownConfig struct {
	// Base cooldown per scan size, as duration strings like "10s".
	Cooldown3 *string `json:"cooldown_3,omitempty"`
	Cooldown5 *string `json:"cooldown_5,omitempty"`
	Cooldown7 *string `json:"cooldown_7,omitempty"`
	Cooldown9 *string `json:"cooldown_9,omitempty"`

	// Jitter fraction per scan size, e.g. 0.10 for +-10% of the base.
	Jitter3 *float64 `json:"jitter_3,omitempty"`
	Jitter5 *float64 `json:"jitter_5,omitempty"`
	Jitter7 *float64 `json:"jitter_7,omitempty"`
	Jitter9 *float64 `json:"jitter_9,omitempty"`
}

// Default base cooldowns, from the host game's radar timing table.
const (
	defaultCooldown3 = 10 * time.Second
	defaultCooldown5 = 15 * time.Second
	defaultCooldown7 = 22 * time.Second
	defaultCooldown9 = 30 * time.Second
)

// EmptyCooldownConfig returns a CooldownConfig with all fields unset.
func EmptyCooldownConfig() *CooldownConfig {
	return &CooldownConfig{}
}

// LoadCooldownConfig loads a CooldownConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON retain their defaults.
func LoadCooldownConfig(path string) (*CooldownConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCooldownConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *CooldownConfig) Validate() error {
	durations := map[string]*string{
		"cooldown_3": c.Cooldown3,
		"cooldown_5": c.Cooldown5,
		"cooldown_7": c.Cooldown7,
		"cooldown_9": c.Cooldown9,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	jitters := map[string]*float64{
		"jitter_3": c.Jitter3,
		"jitter_5": c.Jitter5,
		"jitter_7": c.Jitter7,
		"jitter_9": c.Jitter9,
	}
	for name, v := range jitters {
		if v == nil {
			continue
		}
		if *v < 0 || *v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	return nil
}

// CooldownFor returns the base cooldown for the given scan size, falling back
// to the host game's table for unset fields. Unknown sizes return zero.
func (c *CooldownConfig) CooldownFor(size int) time.Duration {
	switch size {
	case 3:
		return parseOr(c.Cooldown3, defaultCooldown3)
	case 5:
		return parseOr(c.Cooldown5, defaultCooldown5)
	case 7:
		return parseOr(c.Cooldown7, defaultCooldown7)
	case 9:
		return parseOr(c.Cooldown9, defaultCooldown9)
	}
	return 0
}

// JitterFor returns the jitter fraction for the given scan size.
// Unknown sizes return zero.
func (c *CooldownConfig) JitterFor(size int) float64 {
	switch size {
	case 3:
		return floatOr(c.Jitter3, 0.10)
	case 5:
		return floatOr(c.Jitter5, 0.15)
	case 7:
		return floatOr(c.Jitter7, 0.25)
	case 9:
		return floatOr(c.Jitter9, 0.30)
	}
	return 0
}

func parseOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
