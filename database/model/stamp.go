package model

import (
	"errors"
	"strings"
	"time"
)

// Stamp layouts accepted on the wire. New stamps are always written as
// RFC3339 UTC, but records created by older deployments carry naive
// local-time text with either a T or a space separator, and some with
// fractional seconds. Naive stamps are read as UTC.
var stampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

var ErrBadStamp = errors.New("unparseable timestamp")

// NowStamp returns the current time in the canonical stored form.
func NowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// FormatStamp renders t in the canonical stored form.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseStamp parses an ISO-8601 timestamp as found in user records.
// It returns ErrBadStamp when none of the accepted layouts match.
func ParseStamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrBadStamp
	}
	for _, layout := range stampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrBadStamp
}
