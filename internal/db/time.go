package db

import (
	"fmt"
	"time"
)

// Timestamps are stored as RFC 3339 text in UTC.
const timestampLayout = time.RFC3339Nano

// Timestamp formats t for storage.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a value written by Timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
