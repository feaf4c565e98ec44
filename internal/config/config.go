// Package config loads the archiver's process-wide settings once at startup.
//
// Settings come from three layers, later layers winning:
//  1. Defaults
//  2. An optional YAML file named by ARCHIVER_CONFIG_FILE
//  3. Environment variables
//
// The resulting Config is validated as a whole and then passed explicitly to
// every component that needs it.
package config

import (
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/pipeline"
)

// Config is the complete archiver configuration.
type Config struct {
	// RetentionDays is the minimum age, in days, before a record is archived
	// and purged. Required; 0 archives everything created before the run.
	RetentionDays int `yaml:"retention_days"`

	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Run         RunConfig         `yaml:"run"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// SourceConfig locates the Firestore collection records are archived from.
type SourceConfig struct {
	ProjectID      string `yaml:"project_id"`
	Database       string `yaml:"database"`
	Collection     string `yaml:"collection"`
	TimestampField string `yaml:"timestamp_field"`
}

// DestinationConfig locates the Cloud Storage bucket records are archived to.
type DestinationConfig struct {
	// Endpoint overrides the Cloud Storage endpoint, e.g. for an emulator.
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
}

// RunConfig tunes a single export-and-purge run.
type RunConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	BackoffMin       time.Duration `yaml:"backoff_min"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	ThrottleFragment string        `yaml:"throttle_fragment"`
}

// ScheduleConfig controls when the daemon starts runs.
type ScheduleConfig struct {
	// Cron is a standard five-field cron expression.
	Cron       string `yaml:"cron"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return pipeline.RetentionFromDays(c.RetentionDays)
}

// RunnerConfig returns the fixed parameters for pipeline.NewRunner.
func (c *Config) RunnerConfig() pipeline.RunnerConfig {
	return pipeline.RunnerConfig{
		Collection:     c.Source.Collection,
		TimestampField: c.Source.TimestampField,
		Retention:      c.Retention(),
		BatchSize:      c.Run.BatchSize,
	}
}
