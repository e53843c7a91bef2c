package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DATASET_URL", "")
	t.Setenv("DATASET_FILE", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "./db.json", cfg.DatasetFile)
	assert.Equal(t, DefaultGPSTimeout, cfg.GPSTimeout)
	assert.Equal(t, DefaultQuickGPSTimeout, cfg.QuickGPSTimeout)
	assert.Equal(t, 30*time.Second, cfg.ManualLock)
	assert.Equal(t, DefaultGeocodeURL, cfg.GeocodeURL)
}

func TestLoadDurationOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("MANUAL_SELECTION_LOCK", "45000")
	t.Setenv("GPS_TIMEOUT", "12s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.ManualLock)
	assert.Equal(t, 12*time.Second, cfg.GPSTimeout)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("QUICK_GPS_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("QUICK_GPS_TIMEOUT", "-5")
	_, err = Load()
	assert.Error(t, err)
}
