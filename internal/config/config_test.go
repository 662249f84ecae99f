package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrString(s string) *string    { return &s }
func ptrInt(i int) *int             { return &i }
func ptrInt64(i int64) *int64       { return &i }
func ptrFloat64(f float64) *float64 { return &f }

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestEmptyStationConfigHasDefaults(t *testing.T) {
	cfg := EmptyStationConfig()
	assert.Equal(t, "", cfg.GetStationID())
	assert.Equal(t, "./data", cfg.GetDataDir())
	assert.Equal(t, int64(100), cfg.GetPersistenceMS())
	assert.Equal(t, 500.0, cfg.GetMinAreaPx())
	assert.Equal(t, int64(200), cfg.GetStabilizationMS())
	assert.Equal(t, "down", cfg.GetDirection())
	assert.Equal(t, 8, cfg.GetLeaseDurationHours())
	assert.Equal(t, "", cfg.GetLeaseSecret())
	assert.Equal(t, int64(30), cfg.GetMaxClockSkewSeconds())

	x, y, w, h := cfg.GetROI()
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestLoadStationConfigPopulatesFields(t *testing.T) {
	path := writeConfigFile(t, "station.json", `{
		"station_id": "station-a",
		"data_dir": "/var/edgevision/station-a",
		"roi_x": 10,
		"roi_y": 20,
		"roi_width": 200,
		"roi_height": 150,
		"persistence_ms": 250,
		"min_area_px": 750.5,
		"stabilization_ms": 300,
		"direction": "down",
		"lease_duration_hours": 12,
		"lease_secret": "s3cr3t",
		"max_clock_skew_seconds": 45
	}`)

	cfg, err := LoadStationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "station-a", cfg.GetStationID())
	assert.Equal(t, "/var/edgevision/station-a", cfg.GetDataDir())
	assert.Equal(t, int64(250), cfg.GetPersistenceMS())
	assert.Equal(t, 750.5, cfg.GetMinAreaPx())
	assert.Equal(t, int64(300), cfg.GetStabilizationMS())
	assert.Equal(t, 12, cfg.GetLeaseDurationHours())
	assert.Equal(t, "s3cr3t", cfg.GetLeaseSecret())
	assert.Equal(t, int64(45), cfg.GetMaxClockSkewSeconds())

	x, y, w, h := cfg.GetROI()
	assert.Equal(t, 10, x)
	assert.Equal(t, 20, y)
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestLoadStationConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, "station.json", `{"station_id": "station-b"}`)

	cfg, err := LoadStationConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "station-b", cfg.GetStationID())
	assert.Equal(t, "./data", cfg.GetDataDir())
	assert.Equal(t, 8, cfg.GetLeaseDurationHours())
}

func TestLoadStationConfigRejectsNonJSONExtension(t *testing.T) {
	path := writeConfigFile(t, "station.txt", `{"station_id": "station-a"}`)
	_, err := LoadStationConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadStationConfigRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	oversized := `{"station_id": "` + strings.Repeat("x", maxConfigFileSize+1) + `"}`
	require.NoError(t, os.WriteFile(path, []byte(oversized), 0o644))

	_, err := LoadStationConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadStationConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadStationConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadStationConfigRejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, "station.json", `{not valid json`)
	_, err := LoadStationConfig(path)
	require.Error(t, err)
}

func TestLoadStationConfigRejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, "station.json", `{"min_area_px": -1}`)
	_, err := LoadStationConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidateTableDriven(t *testing.T) {
	cases := []struct {
		name    string
		cfg     *StationConfig
		wantErr bool
	}{
		{"empty config is valid", EmptyStationConfig(), false},
		{"positive min area is valid", &StationConfig{MinAreaPx: ptrFloat64(1)}, false},
		{"zero min area is invalid", &StationConfig{MinAreaPx: ptrFloat64(0)}, true},
		{"negative min area is invalid", &StationConfig{MinAreaPx: ptrFloat64(-5)}, true},
		{"positive persistence is valid", &StationConfig{PersistenceMS: ptrInt64(1)}, false},
		{"zero persistence is invalid", &StationConfig{PersistenceMS: ptrInt64(0)}, true},
		{"zero stabilization is valid", &StationConfig{StabilizationMS: ptrInt64(0)}, false},
		{"negative stabilization is invalid", &StationConfig{StabilizationMS: ptrInt64(-1)}, true},
		{"lease hours at min boundary is valid", &StationConfig{LeaseDurationHours: ptrInt(1)}, false},
		{"lease hours at max boundary is valid", &StationConfig{LeaseDurationHours: ptrInt(100)}, false},
		{"lease hours below min is invalid", &StationConfig{LeaseDurationHours: ptrInt(0)}, true},
		{"lease hours above max is invalid", &StationConfig{LeaseDurationHours: ptrInt(101)}, true},
		{"direction down is valid", &StationConfig{Direction: ptrString("down")}, false},
		{"direction up is invalid", &StationConfig{Direction: ptrString("up")}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
