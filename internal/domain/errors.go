package domain

import "fmt"

// InvalidGeometryError reports a district polygon that cannot be indexed.
// It aborts the whole run: corrupt boundary data cannot be worked around.
type InvalidGeometryError struct {
	DistrictID string
	Reason     string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry for district %s: %s", e.DistrictID, e.Reason)
}

// SchemaMismatchError reports a required field missing from a source's raw
// input. It is fatal for that source only; sibling sources continue.
type SchemaMismatchError struct {
	Sensor Sensor
	Field  string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s raw input is missing required field %q", e.Sensor, e.Field)
}

// NoDataAggregatedError reports that every configured source failed, so the
// run produced nothing.
type NoDataAggregatedError struct {
	Sources int
}

func (e *NoDataAggregatedError) Error() string {
	return fmt.Sprintf("no data aggregated: all %d sources failed", e.Sources)
}
