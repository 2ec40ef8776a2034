package domain

import (
	"fmt"
	"time"
)

// Granularity selects the calendar bucket used to group records in time.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// ParseGranularity validates a bucketing granularity from configuration.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityMonth, GranularityYear:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown period granularity %q", s)
}

// PeriodFunc maps a timestamp to its period key.
type PeriodFunc func(time.Time) string

// PeriodFunc returns the key function for the granularity. Keys are plain
// date prefixes ("2015-09-14", "2015-09", "2015"), which sort
// chronologically and are stable across runs.
func (g Granularity) PeriodFunc() PeriodFunc {
	layout := "2006-01-02"
	switch g {
	case GranularityMonth:
		layout = "2006-01"
	case GranularityYear:
		layout = "2006"
	}
	return func(t time.Time) string {
		return t.UTC().Format(layout)
	}
}
