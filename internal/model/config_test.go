package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Scheduler.MaxConcurrentJobs != 3 {
		t.Errorf("MaxConcurrentJobs = %d, want 3", cfg.Scheduler.MaxConcurrentJobs)
	}
	if cfg.Scheduler.PollIntervalSec != 5 {
		t.Errorf("PollIntervalSec = %d, want 5", cfg.Scheduler.PollIntervalSec)
	}
	if cfg.Scheduler.ScheduleCheckIntervalSec != 60 {
		t.Errorf("ScheduleCheckIntervalSec = %d, want 60", cfg.Scheduler.ScheduleCheckIntervalSec)
	}
	if cfg.Scheduler.HealthCheckIntervalSec != 30 {
		t.Errorf("HealthCheckIntervalSec = %d, want 30", cfg.Scheduler.HealthCheckIntervalSec)
	}
	if cfg.Scheduler.LearningIntervalSec != 300 {
		t.Errorf("LearningIntervalSec = %d, want 300", cfg.Scheduler.LearningIntervalSec)
	}
	if cfg.RetryDelay() != 60*time.Second {
		t.Errorf("RetryDelay = %s, want 60s", cfg.RetryDelay())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Scheduler.MaxConcurrentJobs = 7
	cfg.Scheduler.PollIntervalSec = 1
	cfg.ApplyDefaults()

	if cfg.Scheduler.MaxConcurrentJobs != 7 {
		t.Errorf("MaxConcurrentJobs = %d, want 7", cfg.Scheduler.MaxConcurrentJobs)
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("PollInterval = %s, want 1s", cfg.PollInterval())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chorus.yaml")
	content := `
project:
  name: test
scheduler:
  max_concurrent_jobs: 2
  retry_failed_jobs: true
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project.Name != "test" {
		t.Errorf("Project.Name = %q, want test", cfg.Project.Name)
	}
	if cfg.Scheduler.MaxConcurrentJobs != 2 {
		t.Errorf("MaxConcurrentJobs = %d, want 2", cfg.Scheduler.MaxConcurrentJobs)
	}
	if !cfg.Scheduler.RetryFailedJobs {
		t.Error("RetryFailedJobs should be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset fields still get defaults.
	if cfg.Scheduler.PollIntervalSec != 5 {
		t.Errorf("PollIntervalSec = %d, want 5", cfg.Scheduler.PollIntervalSec)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
