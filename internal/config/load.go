package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigFile       = "ARCHIVER_CONFIG_FILE"
	EnvRetentionDays    = "RETENTION_DAYS"
	EnvSourceProjectID  = "SOURCE_PROJECT_ID"
	EnvSourceDatabase   = "SOURCE_DATABASE"
	EnvSourceCollection = "SOURCE_COLLECTION"
	EnvTimestampField   = "CREATED_AT_FIELD"
	EnvDestEndpoint     = "DESTINATION_ENDPOINT"
	EnvDestBucket       = "DESTINATION_BUCKET"
	EnvBatchSize        = "BATCH_SIZE"
	EnvBackoffMin       = "BACKOFF_MIN"
	EnvBackoffMax       = "BACKOFF_MAX"
	EnvThrottleFragment = "THROTTLE_MESSAGE_FRAGMENT"
	EnvSchedule         = "SCHEDULE"
	EnvRunOnStart       = "RUN_ON_START"
	EnvMetricsAddress   = "METRICS_ADDR"
	EnvMetricsPath      = "METRICS_PATH"
)

// LookupFunc reads one environment value. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from the process environment.
func Load() (*Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith builds the configuration from defaults, the optional YAML file and
// the given environment, then validates it. Every problem found is reported
// in a single ValidationError.
func LoadWith(lookup LookupFunc) (*Config, error) {
	cfg := Defaults()

	if path := GetEnv(lookup, EnvConfigFile, ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	errs := applyEnv(cfg, lookup)
	errs = append(errs, validate(cfg)...)
	if len(errs) > 0 {
		return nil, ValidationError{Errors: errs}
	}
	return cfg, nil
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(lookup LookupFunc, key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

// loadFile overlays the YAML file onto cfg; keys absent from the file keep
// their current values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup LookupFunc) []FieldError {
	var errs []FieldError

	if val := GetEnv(lookup, EnvRetentionDays, ""); val != "" {
		days, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvRetentionDays, Message: fmt.Sprintf("not an integer: %q", val)})
		} else {
			cfg.RetentionDays = days
		}
	}

	cfg.Source.ProjectID = GetEnv(lookup, EnvSourceProjectID, cfg.Source.ProjectID)
	cfg.Source.Database = GetEnv(lookup, EnvSourceDatabase, cfg.Source.Database)
	cfg.Source.Collection = GetEnv(lookup, EnvSourceCollection, cfg.Source.Collection)
	cfg.Source.TimestampField = GetEnv(lookup, EnvTimestampField, cfg.Source.TimestampField)
	cfg.Destination.Endpoint = GetEnv(lookup, EnvDestEndpoint, cfg.Destination.Endpoint)
	cfg.Destination.Bucket = GetEnv(lookup, EnvDestBucket, cfg.Destination.Bucket)
	cfg.Run.ThrottleFragment = GetEnv(lookup, EnvThrottleFragment, cfg.Run.ThrottleFragment)
	cfg.Schedule.Cron = GetEnv(lookup, EnvSchedule, cfg.Schedule.Cron)
	cfg.Metrics.Address = GetEnv(lookup, EnvMetricsAddress, cfg.Metrics.Address)
	cfg.Metrics.Path = GetEnv(lookup, EnvMetricsPath, cfg.Metrics.Path)

	if val := GetEnv(lookup, EnvBatchSize, ""); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvBatchSize, Message: fmt.Sprintf("not an integer: %q", val)})
		} else {
			cfg.Run.BatchSize = n
		}
	}
	if val := GetEnv(lookup, EnvBackoffMin, ""); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvBackoffMin, Message: fmt.Sprintf("not a duration: %q", val)})
		} else {
			cfg.Run.BackoffMin = d
		}
	}
	if val := GetEnv(lookup, EnvBackoffMax, ""); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvBackoffMax, Message: fmt.Sprintf("not a duration: %q", val)})
		} else {
			cfg.Run.BackoffMax = d
		}
	}
	if val := GetEnv(lookup, EnvRunOnStart, ""); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvRunOnStart, Message: fmt.Sprintf("not a boolean: %q", val)})
		} else {
			cfg.Schedule.RunOnStart = b
		}
	}

	return errs
}
