// Package config loads the station's JSON-configurable tuning
// parameters: cut-sensor geometry and timing, lease duration policy, and
// clock-skew tolerance. The schema uses pointer-optional fields so a
// partial JSON file leaves unspecified fields at their defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StationConfig is the root configuration for one station process.
type StationConfig struct {
	StationID *string `json:"station_id,omitempty"`
	DataDir   *string `json:"data_dir,omitempty"`

	ROIX      *int `json:"roi_x,omitempty"`
	ROIY      *int `json:"roi_y,omitempty"`
	ROIWidth  *int `json:"roi_width,omitempty"`
	ROIHeight *int `json:"roi_height,omitempty"`

	PersistenceMS   *int64   `json:"persistence_ms,omitempty"`
	MinAreaPx       *float64 `json:"min_area_px,omitempty"`
	StabilizationMS *int64   `json:"stabilization_ms,omitempty"`
	Direction       *string  `json:"direction,omitempty"`

	LeaseDurationHours *int    `json:"lease_duration_hours,omitempty"`
	LeaseSecret        *string `json:"lease_secret,omitempty"`

	MaxClockSkewSeconds *int64 `json:"max_clock_skew_seconds,omitempty"`
}

// EmptyStationConfig returns a StationConfig with every field nil. Use
// LoadStationConfig to populate one from a JSON file.
func EmptyStationConfig() *StationConfig {
	return &StationConfig{}
}

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// LoadStationConfig loads a StationConfig from a JSON file. The file must
// have a .json extension and be under the max file size; fields omitted
// from the JSON retain their defaults via the Get* accessors.
func LoadStationConfig(path string) (*StationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that can be checked in
// isolation, without reference to a frame size.
func (c *StationConfig) Validate() error {
	if c.MinAreaPx != nil && *c.MinAreaPx <= 0 {
		return fmt.Errorf("min_area_px must be positive, got %v", *c.MinAreaPx)
	}
	if c.PersistenceMS != nil && *c.PersistenceMS <= 0 {
		return fmt.Errorf("persistence_ms must be positive, got %d", *c.PersistenceMS)
	}
	if c.StabilizationMS != nil && *c.StabilizationMS < 0 {
		return fmt.Errorf("stabilization_ms must be non-negative, got %d", *c.StabilizationMS)
	}
	if c.LeaseDurationHours != nil && (*c.LeaseDurationHours < 1 || *c.LeaseDurationHours > 100) {
		return fmt.Errorf("lease_duration_hours must be in [1, 100], got %d", *c.LeaseDurationHours)
	}
	if c.Direction != nil && *c.Direction != "down" {
		return fmt.Errorf("unsupported direction %q", *c.Direction)
	}
	return nil
}

// GetStationID returns the configured station ID, or "" if unset.
func (c *StationConfig) GetStationID() string {
	if c.StationID == nil {
		return ""
	}
	return *c.StationID
}

// GetDataDir returns the configured data directory or a local default.
func (c *StationConfig) GetDataDir() string {
	if c.DataDir == nil {
		return "./data"
	}
	return *c.DataDir
}

// GetROI returns the configured ROI origin and dimensions.
func (c *StationConfig) GetROI() (x, y, width, height int) {
	if c.ROIX != nil {
		x = *c.ROIX
	}
	if c.ROIY != nil {
		y = *c.ROIY
	}
	width = 100
	if c.ROIWidth != nil {
		width = *c.ROIWidth
	}
	height = 100
	if c.ROIHeight != nil {
		height = *c.ROIHeight
	}
	return x, y, width, height
}

// GetPersistenceMS returns persistence_ms or its default.
func (c *StationConfig) GetPersistenceMS() int64 {
	if c.PersistenceMS == nil {
		return 100
	}
	return *c.PersistenceMS
}

// GetMinAreaPx returns min_area_px or its default.
func (c *StationConfig) GetMinAreaPx() float64 {
	if c.MinAreaPx == nil {
		return 500
	}
	return *c.MinAreaPx
}

// GetStabilizationMS returns stabilization_ms or its default.
func (c *StationConfig) GetStabilizationMS() int64 {
	if c.StabilizationMS == nil {
		return 200
	}
	return *c.StabilizationMS
}

// GetDirection returns direction or its default, "down".
func (c *StationConfig) GetDirection() string {
	if c.Direction == nil {
		return "down"
	}
	return *c.Direction
}

// GetLeaseDurationHours returns lease_duration_hours or its default.
func (c *StationConfig) GetLeaseDurationHours() int {
	if c.LeaseDurationHours == nil {
		return 8
	}
	return *c.LeaseDurationHours
}

// GetLeaseSecret returns lease_secret or "" if unset. Production
// deployments are expected to set this via the config file or an
// equivalent secret store; an empty secret is only acceptable in tests.
func (c *StationConfig) GetLeaseSecret() string {
	if c.LeaseSecret == nil {
		return ""
	}
	return *c.LeaseSecret
}

// GetMaxClockSkewSeconds returns max_clock_skew_seconds or its default.
func (c *StationConfig) GetMaxClockSkewSeconds() int64 {
	if c.MaxClockSkewSeconds == nil {
		return 30
	}
	return *c.MaxClockSkewSeconds
}
