package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "apcweb.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
host = "192.168.1.50"
port = 3551
interval = 10
timeout = 5
ups_va = 1500
ups_watts = 900
power_factor = 0.6
nominal_voltage = 230
retention_days = 14
database = "/tmp/apcweb-test.db"
simulate = true
log_level = "debug"
`)
	t.Setenv("APCWEB_CONFIG", path)

	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.Host, "Expected Host 192.168.1.50")
	assert.Equal(t, 3551, cfg.Port, "Expected Port 3551")
	assert.Equal(t, 10, cfg.Interval, "Expected Interval 10")
	assert.Equal(t, 5, cfg.Timeout, "Expected Timeout 5")
	assert.Equal(t, 1500, cfg.UPSVA, "Expected UPSVA 1500")
	assert.Equal(t, 900, cfg.UPSWatts, "Expected UPSWatts 900")
	assert.InDelta(t, 0.6, cfg.PowerFactor, 0.001, "Expected PowerFactor 0.6")
	assert.Equal(t, 230, cfg.NominalVoltage, "Expected NominalVoltage 230")
	assert.Equal(t, 14, cfg.RetentionDays, "Expected RetentionDays 14")
	assert.Equal(t, "/tmp/apcweb-test.db", cfg.Database, "Expected Database /tmp/apcweb-test.db")
	assert.True(t, cfg.Simulate, "Expected Simulate true")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APCWEB_CONFIG", "")

	cfg, err := load(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultUPSVA, cfg.UPSVA)
	assert.Equal(t, DefaultUPSWatts, cfg.UPSWatts)
	assert.InDelta(t, DefaultPowerFactor, cfg.PowerFactor, 0.001)
	assert.Equal(t, DefaultNominalVoltage, cfg.NominalVoltage)
	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.False(t, cfg.Simulate)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("APCWEB_CONFIG", path)

	_, err := load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "loud"
`)
	t.Setenv("APCWEB_CONFIG", path)

	_, err := load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
host = "192.168.1.50"
interval = 10
`)
	t.Setenv("APCWEB_CONFIG", path)

	cfg, err := load([]string{"--host", "ups.lan", "--log-level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, "ups.lan", cfg.Host, "Expected Host set by flag")
	assert.Equal(t, 10, cfg.Interval, "File values without flags stay")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel set by flag")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Host:           DefaultHost,
			Port:           DefaultPort,
			Interval:       DefaultInterval,
			Timeout:        DefaultTimeout,
			UPSVA:          DefaultUPSVA,
			UPSWatts:       DefaultUPSWatts,
			PowerFactor:    DefaultPowerFactor,
			NominalVoltage: DefaultNominalVoltage,
			RetentionDays:  DefaultRetentionDays,
			Database:       DefaultDatabase,
			LogLevel:       DefaultLogLevel,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }},
		{"empty host", func(c *Config) { c.Host = "" }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"empty database", func(c *Config) { c.Database = "" }},
		{"zero watts", func(c *Config) { c.UPSWatts = 0 }},
		{"power factor above one", func(c *Config) { c.PowerFactor = 1.5 }},
		{"zero nominal voltage", func(c *Config) { c.NominalVoltage = 0 }},
		{"zero retention", func(c *Config) { c.RetentionDays = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
