package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds process settings. Nothing here changes which devices are
// routed, the stream format or the buffer duration.
type Config struct {
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// IdlePollMs is the wait between polls when no packet is pending.
	IdlePollMs int `mapstructure:"idle_poll_ms"`

	// StatsIntervalSeconds controls the periodic stats log line. 0 disables it.
	StatsIntervalSeconds int `mapstructure:"stats_interval_seconds"`

	// MetricsAddr is the listen address of the diagnostics server
	// (/metrics, /healthz). Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Default returns a Config that reproduces the stock router behaviour.
func Default() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
		IdlePollMs:           10,
		StatsIntervalSeconds: 60,
	}
}

// IdlePoll returns IdlePollMs as a duration.
func (c *Config) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollMs) * time.Millisecond
}

// StatsInterval returns StatsIntervalSeconds as a duration.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSeconds) * time.Second
}

// Load reads cfgFile, or cable-router.yaml from the config directory or the
// working directory when cfgFile is empty. A missing default file is not an
// error. CABLEROUTER_* environment variables override file values.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cable-router")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CABLEROUTER")
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal even when no file sets it.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("idle_poll_ms", cfg.IdlePollMs)
	v.SetDefault("stats_interval_seconds", cfg.StatsIntervalSeconds)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "CableRouter")
	case "darwin":
		return "/Library/Application Support/CableRouter"
	default:
		return "/etc/cable-router"
	}
}
