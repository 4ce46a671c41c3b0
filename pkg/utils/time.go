package utils

import (
	"time"
)

// FormatTimestamp formats timestamp in ISO 8601 format
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseTimestamp parses ISO 8601 timestamp
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// DateSuffix returns the date part of t as YYYY-MM-DD, used in export file names.
func DateSuffix(t time.Time) string {
	return t.Format("2006-01-02")
}

// Now returns current time (useful for mocking in tests)
var Now = time.Now
