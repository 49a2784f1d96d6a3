package model

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Project       ProjectConfig       `yaml:"project"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Collaboration CollaborationConfig `yaml:"collaboration"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SchedulerConfig struct {
	MaxConcurrentJobs        int  `yaml:"max_concurrent_jobs"`
	PollIntervalSec          int  `yaml:"poll_interval_sec"`
	ScheduleCheckIntervalSec int  `yaml:"schedule_check_interval_sec"`
	HealthCheckIntervalSec   int  `yaml:"health_check_interval_sec"`
	CoordinationIntervalSec  int  `yaml:"coordination_interval_sec"`
	LearningIntervalSec      int  `yaml:"learning_interval_sec"`
	RetryFailedJobs          bool `yaml:"retry_failed_jobs"`
	RetryDelaySec            int  `yaml:"retry_delay_sec"`
	DefaultTimeoutMin        int  `yaml:"default_timeout_min"`
	DefaultMaxRetries        int  `yaml:"default_max_retries"`
}

type CollaborationConfig struct {
	AutoCreate           bool `yaml:"auto_create"`
	LongTaskThresholdSec int  `yaml:"long_task_threshold_sec"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// ApplyDefaults fills zero-valued fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		c.Scheduler.MaxConcurrentJobs = 3
	}
	if c.Scheduler.PollIntervalSec <= 0 {
		c.Scheduler.PollIntervalSec = 5
	}
	if c.Scheduler.ScheduleCheckIntervalSec <= 0 {
		c.Scheduler.ScheduleCheckIntervalSec = 60
	}
	if c.Scheduler.HealthCheckIntervalSec <= 0 {
		c.Scheduler.HealthCheckIntervalSec = 30
	}
	if c.Scheduler.CoordinationIntervalSec <= 0 {
		c.Scheduler.CoordinationIntervalSec = 30
	}
	if c.Scheduler.LearningIntervalSec <= 0 {
		c.Scheduler.LearningIntervalSec = 300
	}
	if c.Scheduler.RetryDelaySec <= 0 {
		c.Scheduler.RetryDelaySec = 60
	}
	if c.Scheduler.DefaultTimeoutMin <= 0 {
		c.Scheduler.DefaultTimeoutMin = 30
	}
	if c.Scheduler.DefaultMaxRetries <= 0 {
		c.Scheduler.DefaultMaxRetries = 3
	}
	if c.Collaboration.LongTaskThresholdSec <= 0 {
		c.Collaboration.LongTaskThresholdSec = 1800
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		c.Daemon.ShutdownTimeoutSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9190"
	}
}

// PollInterval returns the supervision poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollIntervalSec) * time.Second
}

// RetryDelay returns the fixed back-off before a failed job re-arms.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Scheduler.RetryDelaySec) * time.Second
}

// LongTaskThreshold returns the estimated-duration threshold above which a
// task makes its job a collaboration candidate.
func (c *Config) LongTaskThreshold() time.Duration {
	return time.Duration(c.Collaboration.LongTaskThresholdSec) * time.Second
}

// LoadConfig reads and parses a YAML config file, applying defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}
