package pipeline

import (
	"fmt"
	"time"
)

// DefaultTimestampField is the document field records are aged by.
const DefaultTimestampField = "createdAt"

// Predicate selects records whose timestamp field is strictly before Before.
// It is fixed when a run starts and never re-evaluated per record.
type Predicate struct {
	Field  string
	Before time.Time
}

// Matches reports whether a record created at t is eligible for archiving.
// Records exactly at the boundary are retained.
func (p Predicate) Matches(t time.Time) bool {
	return t.Before(p.Before)
}

// RetentionFromDays converts a retention window expressed in days.
func RetentionFromDays(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// BuildFilter returns the predicate createdAt < now - retention.
func BuildFilter(field string, retention time.Duration, now time.Time) (Predicate, error) {
	if retention < 0 {
		return Predicate{}, fmt.Errorf("retention window must not be negative, got %s", retention)
	}
	if field == "" {
		field = DefaultTimestampField
	}
	return Predicate{
		Field:  field,
		Before: now.Add(-retention),
	}, nil
}
