package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field names the setting, by its environment variable.
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError reports every invalid or missing setting found at startup.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Has reports whether field is among the errors.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate checks a fully assembled configuration.
func Validate(cfg *Config) error {
	if errs := validate(cfg); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validate(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: EnvRetentionDays, Message: "is required and must be a non-negative integer"})
	}

	required := []struct {
		field string
		value string
	}{
		{EnvSourceProjectID, cfg.Source.ProjectID},
		{EnvSourceDatabase, cfg.Source.Database},
		{EnvSourceCollection, cfg.Source.Collection},
		{EnvDestBucket, cfg.Destination.Bucket},
		{EnvTimestampField, cfg.Source.TimestampField},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, FieldError{Field: r.field, Message: "must be set"})
		}
	}

	if strings.Contains(cfg.Source.Collection, "/") {
		errs = append(errs, FieldError{Field: EnvSourceCollection, Message: "must be a top-level collection name"})
	}

	if cfg.Run.BatchSize <= 0 {
		errs = append(errs, FieldError{Field: EnvBatchSize, Message: "must be positive"})
	}
	if cfg.Run.BackoffMin <= 0 {
		errs = append(errs, FieldError{Field: EnvBackoffMin, Message: "must be positive"})
	}
	if cfg.Run.BackoffMax < cfg.Run.BackoffMin {
		errs = append(errs, FieldError{Field: EnvBackoffMax, Message: "must not be below " + EnvBackoffMin})
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			errs = append(errs, FieldError{Field: EnvSchedule, Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule.Cron, err)})
		}
	}

	if cfg.Metrics.Address != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: EnvMetricsPath, Message: "must start with /"})
	}

	return errs
}
