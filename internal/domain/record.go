package domain

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Sensor identifies a satellite instrument feeding an aggregation run.
type Sensor string

const (
	SensorMODIS  Sensor = "modis"
	SensorVIIRS  Sensor = "viirs"
	SensorMOPITT Sensor = "mopitt"
	SensorAIRS   Sensor = "airs"
)

// Kind distinguishes the two record families a sensor can produce.
type Kind int

const (
	// KindFirePoint marks point-based active-fire detections (MODIS, VIIRS).
	KindFirePoint Kind = iota
	// KindCOGrid marks gridded CO retrievals (MOPITT, AIRS).
	KindCOGrid
)

// ParseSensor validates a sensor name from configuration.
func ParseSensor(s string) (Sensor, error) {
	switch Sensor(s) {
	case SensorMODIS, SensorVIIRS, SensorMOPITT, SensorAIRS:
		return Sensor(s), nil
	}
	return "", fmt.Errorf("unknown sensor %q", s)
}

// Kind reports which record family the sensor produces.
func (s Sensor) Kind() Kind {
	switch s {
	case SensorMOPITT, SensorAIRS:
		return KindCOGrid
	default:
		return KindFirePoint
	}
}

// Quality is the canonical retrieval-quality class for CO grid cells.
type Quality int

const (
	QualityGood Quality = iota
	QualityMarginal
	QualityBad
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityMarginal:
		return "marginal"
	default:
		return "bad"
	}
}

// RawRecord is one upstream record as a flat field map, keyed by the source
// product's native column names. Adapters produce these; [Normalize] consumes
// them.
type RawRecord map[string]string

// HarmonizedRecord is the canonical post-harmonization shape shared by fire
// detections and CO grid cells, so the aggregators never special-case
// sensors.
type HarmonizedRecord struct {
	Sensor Sensor
	// Time is the UTC acquisition timestamp: calendar date plus time of day
	// when the source reports one, midnight otherwise.
	Time time.Time
	// Point is the detection location, or the cell centroid for grid
	// records, in lon/lat order (WGS84 degrees).
	Point orb.Point

	// Fire fields (KindFirePoint).
	Confidence float64  // canonical 0–100 scale
	FRP        *float64 // fire radiative power, MW; nil when unreported
	DayNight   string   // "D", "N", or empty

	// CO fields (KindCOGrid).
	Value        float64 // CO surface mixing ratio, ppbv
	HalfWidthDeg float64 // cell half-width; the cell spans centroid ± this
	Quality      Quality
}

// Bound returns the grid cell's bounding rectangle (centroid ± half-width).
// Only meaningful for KindCOGrid records.
func (r HarmonizedRecord) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.Point[0] - r.HalfWidthDeg, r.Point[1] - r.HalfWidthDeg},
		Max: orb.Point{r.Point[0] + r.HalfWidthDeg, r.Point[1] + r.HalfWidthDeg},
	}
}

// DateRange is an inclusive range of UTC calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days the range spans, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether the date t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := t.UTC().Truncate(24 * time.Hour)
	return !d.Before(r.Start) && !d.After(r.End)
}

// RunCounters accumulates per-source record accounting. Each source task owns
// its own value; counters are folded into the run manifest after the task
// completes, so concurrent sources never share counter state.
type RunCounters struct {
	Input          int // raw records seen
	DroppedQuality int // rejected by the quality policy
	Malformed      int // unparseable coordinate, value, or date
	Unassigned     int // outside every district (points) or overlapping none (cells)
}
