package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arctic-data/corridor/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tracker tuning
// parameters. The schema matches the /api/config endpoint so the same
// JSON can be used for both startup configuration and runtime reads.
// All fields are pointers so a partial config file only overrides what
// it names; the Get* methods supply defaults for everything else.
type TuningConfig struct {
	// Alerting params
	LowConfidenceThreshold *float64 `json:"low_confidence_threshold,omitempty"`
	StaleAfter             *string  `json:"stale_after,omitempty"` // duration string like "5m"

	// API params
	SpeedUnits      *string `json:"speed_units,omitempty"`
	AlertPageSize   *int    `json:"alert_page_size,omitempty"`
	HistoryPageSize *int    `json:"history_page_size,omitempty"`
	StatsWindowDays *int    `json:"stats_window_days,omitempty"`
	MaxRequestBytes *int64  `json:"max_request_bytes,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a config file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.LowConfidenceThreshold != nil {
		if *c.LowConfidenceThreshold < 0 || *c.LowConfidenceThreshold > 1 {
			return fmt.Errorf("low_confidence_threshold must be between 0 and 1, got %f", *c.LowConfidenceThreshold)
		}
	}

	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if _, err := time.ParseDuration(*c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after '%s': %w", *c.StaleAfter, err)
		}
	}

	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %v, got %q", units.ValidUnits, *c.SpeedUnits)
	}

	if c.AlertPageSize != nil && *c.AlertPageSize < 1 {
		return fmt.Errorf("alert_page_size must be positive, got %d", *c.AlertPageSize)
	}

	if c.HistoryPageSize != nil && *c.HistoryPageSize < 1 {
		return fmt.Errorf("history_page_size must be positive, got %d", *c.HistoryPageSize)
	}

	if c.StatsWindowDays != nil && *c.StatsWindowDays < 1 {
		return fmt.Errorf("stats_window_days must be positive, got %d", *c.StatsWindowDays)
	}

	return nil
}

// GetLowConfidenceThreshold returns the low_confidence_threshold value or the default.
func (c *TuningConfig) GetLowConfidenceThreshold() float64 {
	if c.LowConfidenceThreshold == nil {
		return 0.5 // default
	}
	return *c.LowConfidenceThreshold
}

// GetStaleAfter parses and returns the StaleAfter value as a time.Duration.
func (c *TuningConfig) GetStaleAfter() time.Duration {
	if c.StaleAfter == nil || *c.StaleAfter == "" {
		return 5 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.StaleAfter)
	if err != nil {
		return 5 * time.Minute // default on parse error
	}
	return d
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *TuningConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || !units.IsValid(*c.SpeedUnits) {
		return units.MPS // default: stored units
	}
	return *c.SpeedUnits
}

// GetAlertPageSize returns the alert_page_size value or the default.
func (c *TuningConfig) GetAlertPageSize() int {
	if c.AlertPageSize == nil {
		return 100
	}
	return *c.AlertPageSize
}

// GetHistoryPageSize returns the history_page_size value or the default.
func (c *TuningConfig) GetHistoryPageSize() int {
	if c.HistoryPageSize == nil {
		return 500
	}
	return *c.HistoryPageSize
}

// GetStatsWindowDays returns the stats_window_days value or the default.
func (c *TuningConfig) GetStatsWindowDays() int {
	if c.StatsWindowDays == nil {
		return 7
	}
	return *c.StatsWindowDays
}

// GetMaxRequestBytes returns the max_request_bytes value or the default.
func (c *TuningConfig) GetMaxRequestBytes() int64 {
	if c.MaxRequestBytes == nil {
		return 1 << 20 // 1MB
	}
	return *c.MaxRequestBytes
}
