// Package domain holds the account-deletion grace period rules and the page
// gate derived from them.
package domain

import (
	"math"
	"strings"
	"time"
)

// DefaultGraceDays is the window between a deletion request and removal.
const DefaultGraceDays = 90

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds and
// date-only values. Inputs without an offset are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CalculateDeletionDate returns the request time plus the default grace
// period. ok is false for unparseable input.
func CalculateDeletionDate(requestedAt string) (time.Time, bool) {
	return DeletionDate(requestedAt, DefaultGraceDays)
}

// DeletionDate adds graceDays calendar days in the request's own offset, so
// the time of day and offset of the input are preserved.
func DeletionDate(requestedAt string, graceDays int) (time.Time, bool) {
	t, ok := ParseTimestamp(requestedAt)
	if !ok {
		return time.Time{}, false
	}
	return t.AddDate(0, 0, graceDays), true
}

// CalculateDaysUntilDeletion is ceil((deletionDate - now) / 24h), never
// negative. Invalid input yields 0, false.
func CalculateDaysUntilDeletion(requestedAt string, now time.Time) (int, bool) {
	return DaysUntilDeletion(requestedAt, now, DefaultGraceDays)
}

func DaysUntilDeletion(requestedAt string, now time.Time, graceDays int) (int, bool) {
	deletionDate, ok := DeletionDate(requestedAt, graceDays)
	if !ok {
		return 0, false
	}
	return daysBetween(now, deletionDate), true
}

func daysBetween(now, deadline time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / float64(24*time.Hour)))
}
