// Package aggregate reduces harmonized sensor records onto districts,
// producing per-district, per-period statistics and the merged wide table
// a run hands to its outputs.
package aggregate

import (
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// highConfidenceMin is the canonical-scale confidence at or above which a
// detection counts as high-confidence in FireStats.
const highConfidenceMin = 80

// Key uniquely identifies one row of a per-sensor table. Duplicate keys
// within a single run are a defect; MergeTables rejects them.
type Key struct {
	DistrictID string
	Sensor     domain.Sensor
	Period     string
}

// FireStats summarizes the fire detections assigned to one district-period.
type FireStats struct {
	Count  int     `json:"count"`
	FRPSum float64 `json:"frp_sum_mw"`
	// FRPMax and FRPMean are nil when no assigned detection reported FRP:
	// an absent measurement, not a zero one.
	FRPMax  *float64 `json:"frp_max_mw"`
	FRPMean *float64 `json:"frp_mean_mw"`
	// FireDays counts distinct calendar dates with at least one detection.
	FireDays       int       `json:"fire_days"`
	DensityPerKm2  float64   `json:"density_per_km2"`
	HighConfidence int       `json:"high_confidence_count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// COStats summarizes the CO grid cells overlapping one district-period.
// A COStats value only exists when at least one cell overlapped, so its
// weighted mean is always defined; a missing district-period stays absent
// rather than reading as zero.
type COStats struct {
	// WeightedMean is Σ(fraction·value) / Σ(fraction) over every
	// overlapping cell, in ppbv.
	WeightedMean float64 `json:"weighted_mean_ppbv"`
	Min          float64 `json:"min_ppbv"`
	Max          float64 `json:"max_ppbv"`
	// Std, Median, and P95 describe the spread of the overlapping cell
	// values, each cell weighted by its overlap fraction.
	Std    float64 `json:"std_ppbv"`
	Median float64 `json:"median_ppbv"`
	P95    float64 `json:"p95_ppbv"`
	// WeightSum is the total overlap fraction accumulated, a measure of how
	// much cell area informed the mean.
	WeightSum float64 `json:"weight_sum"`
	Cells     int     `json:"cells"`
}

// DistrictPeriodStat is one row of a per-sensor table: the statistics for a
// single (district, sensor, period). Exactly one of Fire and CO is set,
// matching the sensor's kind. Rows are created fresh each run and never
// mutated after aggregation.
type DistrictPeriodStat struct {
	DistrictID   string        `json:"district_id"`
	DistrictName string        `json:"district_name"`
	Sensor       domain.Sensor `json:"sensor"`
	Period       string        `json:"period"`
	Fire         *FireStats    `json:"fire,omitempty"`
	CO           *COStats      `json:"co,omitempty"`
}
