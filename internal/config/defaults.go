package config

import "github.com/Lllllllleong/recordarchiver/internal/pipeline"

// Default values for optional settings.
const (
	DefaultSchedule    = "*/30 * * * *"
	DefaultMetricsPath = "/metrics"
)

// unsetRetention marks RetentionDays as not provided by any layer.
const unsetRetention = -1

// Defaults returns a Config holding every default. Required fields are left
// empty so validation reports them when no other layer sets them.
func Defaults() *Config {
	return &Config{
		RetentionDays: unsetRetention,
		Source: SourceConfig{
			TimestampField: pipeline.DefaultTimestampField,
		},
		Run: RunConfig{
			BatchSize:        pipeline.DefaultBatchSize,
			BackoffMin:       pipeline.DefaultBackoffMin,
			BackoffMax:       pipeline.DefaultBackoffMax,
			ThrottleFragment: pipeline.DefaultThrottleFragment,
		},
		Schedule: ScheduleConfig{
			Cron:       DefaultSchedule,
			RunOnStart: true,
		},
		Metrics: MetricsConfig{
			Path: DefaultMetricsPath,
		},
	}
}
