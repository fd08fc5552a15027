package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that must stop startup from values
// that were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal problem was found.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// All returns fatals followed by warnings.
func (r ValidationResult) All() []error {
	out := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	out = append(out, r.Fatals...)
	return append(out, r.Warnings...)
}

// Validate checks the config and returns every problem found. Out-of-range
// numbers are clamped to safe values.
func (c *Config) Validate() []error {
	return c.ValidateTiered().All()
}

// ValidateTiered is Validate with problems split by severity. An unusable
// metrics address is fatal; everything else is clamped or ignored with a
// warning. Nothing is logged; the caller reports the result once logging is
// configured.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("metrics_addr %q is not host:port: %w", c.MetricsAddr, err))
		} else if port == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("metrics_addr %q has no port", c.MetricsAddr))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.IdlePollMs < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("idle_poll_ms %d is below minimum 1, clamping", c.IdlePollMs))
		c.IdlePollMs = 1
	} else if c.IdlePollMs > 1000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("idle_poll_ms %d exceeds maximum 1000, clamping", c.IdlePollMs))
		c.IdlePollMs = 1000
	}

	if c.StatsIntervalSeconds < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("stats_interval_seconds %d is negative, disabling", c.StatsIntervalSeconds))
		c.StatsIntervalSeconds = 0
	} else if c.StatsIntervalSeconds > 3600 {
		r.Warnings = append(r.Warnings, fmt.Errorf("stats_interval_seconds %d exceeds maximum 3600, clamping", c.StatsIntervalSeconds))
		c.StatsIntervalSeconds = 3600
	}

	if c.LogMaxSizeMB < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	}
	if c.LogMaxBackups < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_backups %d is below minimum 1, clamping", c.LogMaxBackups))
		c.LogMaxBackups = 1
	}

	return r
}
