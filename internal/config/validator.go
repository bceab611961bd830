package config

import (
	"fmt"
	"net"
	"strings"
)

const (
	minPayloadSize = 8
	// 65535 minus the IPv4 and ICMP headers
	maxPayloadSize = 65507
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Target == "" {
		errs = append(errs, "target must be specified")
	}

	// Count only matters when not looping forever
	if !c.Probe.Infinite && c.Probe.Count <= 0 {
		errs = append(errs, fmt.Sprintf("probe.count must be > 0, got %d", c.Probe.Count))
	}

	// Payload must hold the 8-byte send timestamp
	if c.Probe.Size < minPayloadSize || c.Probe.Size > maxPayloadSize {
		errs = append(errs, fmt.Sprintf("probe.size must be between %d and %d, got %d", minPayloadSize, maxPayloadSize, c.Probe.Size))
	}

	if c.Probe.TimeoutMs <= 0 {
		errs = append(errs, "probe.timeout_ms must be > 0")
	}

	if c.Probe.IntervalMs < 0 {
		errs = append(errs, "probe.interval_ms must be >= 0")
	}

	if c.Probe.IdentifierStrategy != "pid" && c.Probe.IdentifierStrategy != "random" {
		errs = append(errs, fmt.Sprintf("probe.identifier_strategy must be 'pid' or 'random', got %q", c.Probe.IdentifierStrategy))
	}

	if c.Stats.ReportIntervalSec < 0 {
		errs = append(errs, "stats.report_interval_sec must be >= 0")
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("invalid metrics.listen address %q: %v", c.Metrics.Listen, err))
		}
	}

	// Log level must be valid
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
