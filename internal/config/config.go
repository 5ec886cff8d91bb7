package config

import (
	"os"

	"codeberg.org/mutker/cpufreqctl/internal/dvfs"
	"codeberg.org/mutker/cpufreqctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval     = 2
	defaultMinFrequency = 800
	defaultMaxFrequency = 4000
	defaultTemperature  = 75
	defaultPowerLimit   = 65
	defaultHysteresis   = 100
	defaultMetricsDB    = "/var/lib/cpufreqctl/metrics.db"

	configEnvVar = "CPUFREQCTL_CONFIG"
)

type Config struct {
	Interval     int    `mapstructure:"interval"`
	MinFrequency int    `mapstructure:"minfreq"`
	MaxFrequency int    `mapstructure:"maxfreq"`
	Temperature  int    `mapstructure:"temperature"`
	PowerLimit   int    `mapstructure:"powerlimit"`
	Hysteresis   int    `mapstructure:"hysteresis"`
	Monitor      bool   `mapstructure:"monitor"`
	Metrics      bool   `mapstructure:"metrics"`
	MetricsDB    string `mapstructure:"database"`
	LogLevel     string `mapstructure:"loglevel"`
}

// Load reads configuration from /etc/cpufreqctl.toml (or the file named by
// CPUFREQCTL_CONFIG) and command-line flags, flags winning over the file.
func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("cpufreqctl", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Int("interval", defaultInterval, "Seconds between telemetry samples")
	fs.Int("minfreq", defaultMinFrequency, "Minimum target frequency in MHz")
	fs.Int("maxfreq", defaultMaxFrequency, "Maximum target frequency in MHz")
	fs.Int("temperature", defaultTemperature, "Target temperature in degrees Celsius")
	fs.Int("powerlimit", defaultPowerLimit, "Advisory package power ceiling in watts")
	fs.Int("hysteresis", defaultHysteresis, "Required MHz change before applying a new target")
	fs.Bool("monitor", false, "Only log telemetry, never set frequencies")
	fs.Bool("metrics", false, "Persist telemetry to the metrics database")
	fs.String("database", defaultMetricsDB, "Path to the metrics database")
	fs.String("loglevel", DefaultLogLevel, "Log level (debug, info, warning, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cpufreqctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.MinFrequency <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "minfreq must be positive")
	}
	if c.MaxFrequency <= c.MinFrequency {
		return errFactory.WithData(errors.ErrInvalidConfig, "maxfreq must be above minfreq")
	}
	if c.Temperature <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "temperature must be positive")
	}
	if c.Hysteresis < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "hysteresis must not be negative")
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Policy returns the frequency policy derived from the configuration.
func (c *Config) Policy() dvfs.Policy {
	return dvfs.Policy{
		MinFrequencyMHz:   uint64(c.MinFrequency),
		MaxFrequencyMHz:   uint64(c.MaxFrequency),
		TargetTemperature: float64(c.Temperature),
		PowerCeilingWatts: float64(c.PowerLimit),
	}
}
