package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Equal(t, "data/load.csv", cfg.Data.LoadCSV)
	assert.Equal(t, "models", cfg.Data.ModelDir)

	assert.Equal(t, time.Hour, cfg.Pipeline.Interval)
	assert.Equal(t, 48, cfg.Pipeline.WindowLength)
	assert.Equal(t, 3, cfg.Pipeline.MaxGap)

	assert.Empty(t, cfg.Training.RetrainCron)
	assert.Equal(t, 5, cfg.Training.Folds)
	assert.Equal(t, 0.2, cfg.Training.HoldoutFraction)

	assert.Equal(t, "https://api.open-meteo.com/v1", cfg.OpenMeteo.BaseURL)
	assert.Equal(t, 28.6519, cfg.OpenMeteo.Latitude)
	assert.Equal(t, 77.2315, cfg.OpenMeteo.Longitude)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("GRID_INTERVAL", "30m")
	t.Setenv("WINDOW_LENGTH", "24")
	t.Setenv("RETRAIN_CRON", "0 3 * * *")
	t.Setenv("HOLDOUT_FRACTION", "0.3")
	t.Setenv("OPENMETEO_LATITUDE", "19.0760")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.Interval)
	assert.Equal(t, 24, cfg.Pipeline.WindowLength)
	assert.Equal(t, "0 3 * * *", cfg.Training.RetrainCron)
	assert.Equal(t, 0.3, cfg.Training.HoldoutFraction)
	assert.Equal(t, 19.076, cfg.OpenMeteo.Latitude)
}

func TestLoad_MalformedValuesFallBackToZero(t *testing.T) {
	t.Setenv("GRID_INTERVAL", "not-a-duration")
	t.Setenv("WINDOW_LENGTH", "abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.Pipeline.Interval)
	assert.Equal(t, 0, cfg.Pipeline.WindowLength)
}
