// Package config loads and validates the habitd configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runger/habitd/internal/analyzer"
	"github.com/runger/habitd/internal/classify"
)

// Config represents the habitd configuration.
type Config struct {
	Daemon        DaemonConfig   `yaml:"daemon"`
	Analysis      AnalysisConfig `yaml:"analysis"`
	HomeAssistant HassConfig     `yaml:"home_assistant"`
	Storage       StorageConfig  `yaml:"storage"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	SocketPath       string `yaml:"socket_path"`        // Unix socket path (empty = default)
	LogLevel         string `yaml:"log_level"`          // debug, info, warn, error
	IntervalDays     int    `yaml:"interval_days"`      // Days between scheduled analysis runs
	NotifyOnResults  bool   `yaml:"notify_on_results"`  // Post a notification digest after each run
	ShutdownGraceSec int    `yaml:"shutdown_grace_sec"` // Seconds to wait for in-flight requests
}

// AnalysisConfig holds pattern-analysis parameters.
type AnalysisConfig struct {
	LookbackDays             int      `yaml:"lookback_days"`
	MinOccurrences           int      `yaml:"min_occurrences"`
	ConsistencyThreshold     float64  `yaml:"consistency_threshold"`
	TimeWindowMinutes        int      `yaml:"time_window_minutes"`
	TrackedDomains           []string `yaml:"tracked_domains"`
	UserFilterMode           string   `yaml:"user_filter_mode"`   // none, exclude, include
	FilteredUsers            []string `yaml:"filtered_users"`
	DomainFilterMode         string   `yaml:"domain_filter_mode"` // none, exclude, include
	FilteredDomains          []string `yaml:"filtered_domains"`
	StaleThresholdDays       int      `yaml:"stale_threshold_days"`
	IgnoreAutomationPatterns []string `yaml:"ignore_automation_patterns"`
}

// HassConfig holds Home Assistant connection settings.
type HassConfig struct {
	URL        string `yaml:"url"`         // e.g. http://homeassistant.local:8123
	Token      string `yaml:"token"`       // long-lived access token (prefer token_file or env)
	TokenFile  string `yaml:"token_file"`  // file containing the token
	TimeoutSec int    `yaml:"timeout_sec"` // HTTP request timeout
}

// StorageConfig holds state-database settings.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"` // empty = <base>/state.db
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			LogLevel:         "info",
			IntervalDays:     7,
			NotifyOnResults:  true,
			ShutdownGraceSec: 5,
		},
		Analysis: AnalysisConfig{
			LookbackDays:         analyzer.DefaultLookbackDays,
			MinOccurrences:       analyzer.DefaultMinOccurrences,
			ConsistencyThreshold: analyzer.DefaultConsistencyThreshold,
			TimeWindowMinutes:    analyzer.DefaultWindowMinutes,
			TrackedDomains:       append([]string(nil), analyzer.TrackedDomains...),
			UserFilterMode:       string(classify.ModeNone),
			DomainFilterMode:     string(classify.ModeNone),
			StaleThresholdDays:   analyzer.DefaultStaleThresholdDays,
		},
		HomeAssistant: HassConfig{
			TimeoutSec: 60,
		},
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error: the defaults are returned unchanged. The
// result is always validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration defects. These indicate setup errors and
// are fatal before any processing begins.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Daemon.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error, got %q", c.Daemon.LogLevel)
	}
	if c.Daemon.IntervalDays < 1 {
		return fmt.Errorf("daemon.interval_days must be >= 1, got %d", c.Daemon.IntervalDays)
	}
	if c.Analysis.LookbackDays < 1 {
		return fmt.Errorf("analysis.lookback_days must be >= 1, got %d", c.Analysis.LookbackDays)
	}
	if err := c.AnalyzerOptions().Validate(); err != nil {
		return err
	}
	if c.Analysis.StaleThresholdDays < 1 {
		return fmt.Errorf("analysis.stale_threshold_days must be >= 1, got %d", c.Analysis.StaleThresholdDays)
	}
	if c.HomeAssistant.TimeoutSec < 1 {
		return fmt.Errorf("home_assistant.timeout_sec must be >= 1, got %d", c.HomeAssistant.TimeoutSec)
	}
	return nil
}

// AnalyzerOptions builds analyzer Options from the analysis section.
// Dismissed ids and the name resolver are supplied per run by the caller.
func (c *Config) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		TrackedDomains:       c.Analysis.TrackedDomains,
		MinOccurrences:       c.Analysis.MinOccurrences,
		ConsistencyThreshold: c.Analysis.ConsistencyThreshold,
		WindowMinutes:        c.Analysis.TimeWindowMinutes,
		Filters: classify.NewFilters(
			classify.FilterMode(c.Analysis.UserFilterMode), c.Analysis.FilteredUsers,
			classify.FilterMode(c.Analysis.DomainFilterMode), c.Analysis.FilteredDomains,
		),
	}
}
