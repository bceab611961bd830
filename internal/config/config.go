package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ping tool.
type Config struct {
	Target  string        `yaml:"target"  mapstructure:"target"`
	Probe   ProbeConfig   `yaml:"probe"   mapstructure:"probe"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Stats   StatsConfig   `yaml:"stats"   mapstructure:"stats"`
	Capture CaptureConfig `yaml:"capture" mapstructure:"capture"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type ProbeConfig struct {
	Count              int    `yaml:"count"               mapstructure:"count"`
	Size               int    `yaml:"size"                mapstructure:"size"`
	Infinite           bool   `yaml:"infinite"            mapstructure:"infinite"`
	TimeoutMs          int    `yaml:"timeout_ms"          mapstructure:"timeout_ms"`
	IntervalMs         int    `yaml:"interval_ms"         mapstructure:"interval_ms"`
	IdentifierStrategy string `yaml:"identifier_strategy" mapstructure:"identifier_strategy"`
}

type ResolveConfig struct {
	Reverse bool `yaml:"reverse" mapstructure:"reverse"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file"  mapstructure:"file"`
}

type StatsConfig struct {
	Enabled           bool   `yaml:"enabled"             mapstructure:"enabled"`
	ReportIntervalSec int    `yaml:"report_interval_sec" mapstructure:"report_interval_sec"`
	ExportFile        string `yaml:"export_file"         mapstructure:"export_file"`
}

type CaptureConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// SetDefaults configures default values for the configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("probe.count", 4)
	v.SetDefault("probe.size", 8)
	v.SetDefault("probe.infinite", false)
	v.SetDefault("probe.timeout_ms", 1000)
	v.SetDefault("probe.interval_ms", 1000)
	v.SetDefault("probe.identifier_strategy", "pid")
	v.SetDefault("resolve.reverse", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("stats.enabled", true)
	v.SetDefault("stats.report_interval_sec", 0)
}

// Load reads configuration from a YAML file and returns a Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithViper reads configuration using an existing viper instance (for CLI flag binding).
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Timeout returns the per-probe reply timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMs) * time.Millisecond
}

// Interval returns the spacing between probes.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Probe.IntervalMs) * time.Millisecond
}

// Summary returns a human-readable summary of the configuration.
func (c *Config) Summary() string {
	var sb strings.Builder
	sb.WriteString("Configuration:\n")
	sb.WriteString(fmt.Sprintf("  Target:        %s\n", c.Target))
	if c.Probe.Infinite {
		sb.WriteString("  Count:         until interrupted\n")
	} else {
		sb.WriteString(fmt.Sprintf("  Count:         %d\n", c.Probe.Count))
	}
	sb.WriteString(fmt.Sprintf("  Payload:       %d bytes\n", c.Probe.Size))
	sb.WriteString(fmt.Sprintf("  Timeout:       %dms\n", c.Probe.TimeoutMs))
	sb.WriteString(fmt.Sprintf("  Interval:      %dms\n", c.Probe.IntervalMs))
	sb.WriteString(fmt.Sprintf("  Identifier:    %s\n", c.Probe.IdentifierStrategy))
	sb.WriteString(fmt.Sprintf("  Reverse DNS:   %v\n", c.Resolve.Reverse))
	if c.Capture.File != "" {
		sb.WriteString(fmt.Sprintf("  Capture:       %s\n", c.Capture.File))
	}
	if c.Metrics.Listen != "" {
		sb.WriteString(fmt.Sprintf("  Metrics:       %s\n", c.Metrics.Listen))
	}
	return sb.String()
}
