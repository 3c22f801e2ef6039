package config

import (
	"os"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults match the hardware this was written against: a Smart-UPS 3000 XL
// behind a LAN apcupsd instance.
const (
	DefaultHost           = "10.0.0.13"
	DefaultPort           = 3551
	DefaultInterval       = 5
	DefaultTimeout        = 10
	DefaultUPSVA          = 3000
	DefaultUPSWatts       = 2700
	DefaultPowerFactor    = 0.9
	DefaultNominalVoltage = 120
	DefaultRetentionDays  = 7
	DefaultDatabase       = "/var/lib/apcweb/history.db"
	DefaultLogLevel       = "info"
)

type Config struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	Interval       int     `mapstructure:"interval"`
	Timeout        int     `mapstructure:"timeout"`
	UPSVA          int     `mapstructure:"ups_va"`
	UPSWatts       int     `mapstructure:"ups_watts"`
	PowerFactor    float64 `mapstructure:"power_factor"`
	NominalVoltage int     `mapstructure:"nominal_voltage"`
	RetentionDays  int     `mapstructure:"retention_days"`
	Database       string  `mapstructure:"database"`
	Simulate       bool    `mapstructure:"simulate"`
	LogLevel       string  `mapstructure:"log_level"`
}

// Load reads configuration from an apcweb.toml config file (explicit path via
// APCWEB_CONFIG or --config, otherwise searched in /etc and the working
// directory), APCWEB_* environment variables, and command-line flags.
// Flags override the file; the file overrides defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("ups_va", DefaultUPSVA)
	v.SetDefault("ups_watts", DefaultUPSWatts)
	v.SetDefault("power_factor", DefaultPowerFactor)
	v.SetDefault("nominal_voltage", DefaultNominalVoltage)
	v.SetDefault("retention_days", DefaultRetentionDays)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("simulate", false)
	v.SetDefault("log_level", DefaultLogLevel)

	fs := pflag.NewFlagSet("apcwebd", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to config file")
	fs.String("host", DefaultHost, "apcupsd daemon host")
	fs.Int("port", DefaultPort, "apcupsd NIS port")
	fs.Int("interval", DefaultInterval, "Poll interval in seconds")
	fs.Int("timeout", DefaultTimeout, "Protocol timeout in seconds")
	fs.String("database", DefaultDatabase, "Path to the history database")
	fs.Bool("simulate", false, "Substitute a simulated on-battery status each cycle")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for flagName, key := range map[string]string{
		"host":      "host",
		"port":      "port",
		"interval":  "interval",
		"timeout":   "timeout",
		"database":  "database",
		"simulate":  "simulate",
		"log-level": "log_level",
	} {
		f := fs.Lookup(flagName)
		if f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	configPath := os.Getenv("APCWEB_CONFIG")
	if *configFlag != "" {
		configPath = *configFlag
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName("apcweb")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	v.SetEnvPrefix("APCWEB")
	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the loaded configuration for values the collector
// cannot run with.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "timeout must be positive")
	}
	if c.Host == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errFactory.WithData(errors.ErrInvalidConfig, "port out of range")
	}
	if c.Database == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "database")
	}
	if c.UPSWatts <= 0 || c.UPSVA <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "ups rating must be positive")
	}
	if c.PowerFactor <= 0 || c.PowerFactor > 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "power factor out of range")
	}
	if c.NominalVoltage <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "nominal voltage must be positive")
	}
	if c.RetentionDays <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "retention must be positive")
	}
	if !isValidLogLevel(c.LogLevel) {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warning", "warn", "error":
		return true
	default:
		return false
	}
}
