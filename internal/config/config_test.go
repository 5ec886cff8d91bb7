package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/cpufreqctl/internal/config"
	"codeberg.org/mutker/cpufreqctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cpufreqctl.toml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfigFile(t, `
interval = 5
minfreq = 1200
maxfreq = 3600
temperature = 70
powerlimit = 95
hysteresis = 200
monitor = true
metrics = true
database = "/path/to/metrics.db"
loglevel = "debug"
`)
	t.Setenv("CPUFREQCTL_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.Equal(t, 1200, cfg.MinFrequency, "Expected MinFrequency 1200")
	assert.Equal(t, 3600, cfg.MaxFrequency, "Expected MaxFrequency 3600")
	assert.Equal(t, 70, cfg.Temperature, "Expected Temperature 70")
	assert.Equal(t, 95, cfg.PowerLimit, "Expected PowerLimit 95")
	assert.Equal(t, 200, cfg.Hysteresis, "Expected Hysteresis 200")
	assert.True(t, cfg.Monitor, "Expected Monitor true")
	assert.True(t, cfg.Metrics, "Expected Metrics true")
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB, "Expected MetricsDB /path/to/metrics.db")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("CPUFREQCTL_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 2, cfg.Interval, "Expected default Interval 2")
	assert.Equal(t, 800, cfg.MinFrequency, "Expected default MinFrequency 800")
	assert.Equal(t, 4000, cfg.MaxFrequency, "Expected default MaxFrequency 4000")
	assert.Equal(t, 75, cfg.Temperature, "Expected default Temperature 75")
	assert.Equal(t, 65, cfg.PowerLimit, "Expected default PowerLimit 65")
	assert.Equal(t, 100, cfg.Hysteresis, "Expected default Hysteresis 100")
	assert.False(t, cfg.Monitor, "Expected default Monitor false")
	assert.False(t, cfg.Metrics, "Expected default Metrics false")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfigFile(t, `
This is not a valid TOML file
`)
	t.Setenv("CPUFREQCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfigFile(t, `
loglevel = "invalid"
`)
	t.Setenv("CPUFREQCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidLogLevel, errors.CodeOf(err))
}

func TestInvalidFrequencyRange(t *testing.T) {
	configPath := writeConfigFile(t, `
minfreq = 3600
maxfreq = 1200
`)
	t.Setenv("CPUFREQCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestLogLevelFlag(t *testing.T) {
	// Save original args and restore after test
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	t.Setenv("CPUFREQCTL_CONFIG", "")
	os.Args = []string{"cpufreqctl", "--loglevel", "warning"}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.LogLevel, "Expected LogLevel to be set by flag")
}
