package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// QualityPolicy is the per-sensor minimum-quality gate applied during
// harmonization. Records failing the gate are dropped and counted.
type QualityPolicy struct {
	// MinConfidence applies to fire sensors, on the canonical 0–100 scale.
	MinConfidence float64
	// AcceptMarginal lets marginal-quality CO cells through. Bad cells are
	// always rejected.
	AcceptMarginal bool
}

// errMalformed wraps per-record parse failures so Normalize can distinguish
// them from the fatal SchemaMismatchError.
var errMalformed = errors.New("malformed record")

type sensorSchema struct {
	required  []string
	normalize func(RawRecord) (HarmonizedRecord, error)
}

var schemas = map[Sensor]sensorSchema{
	SensorMODIS: {
		required:  []string{"latitude", "longitude", "acq_date", "confidence"},
		normalize: normalizeMODIS,
	},
	SensorVIIRS: {
		required:  []string{"latitude", "longitude", "acq_date", "confidence"},
		normalize: normalizeVIIRS,
	},
	SensorMOPITT: {
		required:  []string{"lat", "lon", "date", "co_ppbv", "quality"},
		normalize: normalizeCO(SensorMOPITT, 0.1),
	},
	SensorAIRS: {
		required:  []string{"lat", "lon", "date", "co_ppbv", "quality"},
		normalize: normalizeCO(SensorAIRS, 0.5),
	},
}

// Normalize converts a source's raw records into canonical harmonized
// records, applying the sensor's schema and the quality policy. A required
// field absent from the input returns a [SchemaMismatchError], fatal for
// this source. Unparseable and quality-rejected records are dropped and
// counted in counters, never silently discarded.
func Normalize(sensor Sensor, raws []RawRecord, policy QualityPolicy, counters *RunCounters) ([]HarmonizedRecord, error) {
	schema, ok := schemas[sensor]
	if !ok {
		return nil, fmt.Errorf("no schema registered for sensor %q", sensor)
	}

	out := make([]HarmonizedRecord, 0, len(raws))
	for _, raw := range raws {
		counters.Input++

		for _, field := range schema.required {
			if _, ok := raw[field]; !ok {
				return nil, &SchemaMismatchError{Sensor: sensor, Field: field}
			}
		}

		rec, err := schema.normalize(raw)
		if err != nil {
			counters.Malformed++
			continue
		}
		if !passesPolicy(rec, policy) {
			counters.DroppedQuality++
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func passesPolicy(rec HarmonizedRecord, policy QualityPolicy) bool {
	if rec.Sensor.Kind() == KindFirePoint {
		return rec.Confidence >= policy.MinConfidence
	}
	switch rec.Quality {
	case QualityGood:
		return true
	case QualityMarginal:
		return policy.AcceptMarginal
	default:
		return false
	}
}

func normalizeMODIS(raw RawRecord) (HarmonizedRecord, error) {
	rec, err := normalizeFireCommon(SensorMODIS, raw)
	if err != nil {
		return HarmonizedRecord{}, err
	}
	conf, err := parseFloat(raw["confidence"])
	if err != nil {
		return HarmonizedRecord{}, fmt.Errorf("%w: confidence %q", errMalformed, raw["confidence"])
	}
	rec.Confidence = clamp(conf, 0, 100)
	return rec, nil
}

func normalizeVIIRS(raw RawRecord) (HarmonizedRecord, error) {
	rec, err := normalizeFireCommon(SensorVIIRS, raw)
	if err != nil {
		return HarmonizedRecord{}, err
	}
	conf, err := viirsConfidence(raw["confidence"])
	if err != nil {
		return HarmonizedRecord{}, err
	}
	rec.Confidence = conf
	return rec, nil
}

// normalizeFireCommon handles the FIRMS columns shared by MODIS and VIIRS:
// coordinates, acquisition date/time, optional FRP, optional day/night flag.
func normalizeFireCommon(sensor Sensor, raw RawRecord) (HarmonizedRecord, error) {
	lat, err := parseFloat(raw["latitude"])
	if err != nil || lat < -90 || lat > 90 {
		return HarmonizedRecord{}, fmt.Errorf("%w: latitude %q", errMalformed, raw["latitude"])
	}
	lon, err := parseFloat(raw["longitude"])
	if err != nil || lon < -180 || lon > 180 {
		return HarmonizedRecord{}, fmt.Errorf("%w: longitude %q", errMalformed, raw["longitude"])
	}
	ts, err := parseAcquisition(raw["acq_date"], raw["acq_time"])
	if err != nil {
		return HarmonizedRecord{}, err
	}

	rec := HarmonizedRecord{
		Sensor:   sensor,
		Time:     ts,
		Point:    orb.Point{lon, lat},
		DayNight: strings.ToUpper(strings.TrimSpace(raw["daynight"])),
	}

	if s := strings.TrimSpace(raw["frp"]); s != "" {
		frp, err := parseFloat(s)
		if err != nil || frp < 0 {
			return HarmonizedRecord{}, fmt.Errorf("%w: frp %q", errMalformed, s)
		}
		rec.FRP = &frp
	}
	return rec, nil
}

func normalizeCO(sensor Sensor, halfWidthDeg float64) func(RawRecord) (HarmonizedRecord, error) {
	return func(raw RawRecord) (HarmonizedRecord, error) {
		lat, err := parseFloat(raw["lat"])
		if err != nil || lat < -90 || lat > 90 {
			return HarmonizedRecord{}, fmt.Errorf("%w: lat %q", errMalformed, raw["lat"])
		}
		lon, err := parseFloat(raw["lon"])
		if err != nil || lon < -180 || lon > 180 {
			return HarmonizedRecord{}, fmt.Errorf("%w: lon %q", errMalformed, raw["lon"])
		}
		day, err := time.Parse("2006-01-02", strings.TrimSpace(raw["date"]))
		if err != nil {
			return HarmonizedRecord{}, fmt.Errorf("%w: date %q", errMalformed, raw["date"])
		}
		value, err := parseFloat(raw["co_ppbv"])
		if err != nil || value < 0 {
			return HarmonizedRecord{}, fmt.Errorf("%w: co_ppbv %q", errMalformed, raw["co_ppbv"])
		}
		quality, err := parseQuality(raw["quality"])
		if err != nil {
			return HarmonizedRecord{}, err
		}

		return HarmonizedRecord{
			Sensor:       sensor,
			Time:         day.UTC(),
			Point:        orb.Point{lon, lat},
			Value:        value,
			HalfWidthDeg: halfWidthDeg,
			Quality:      quality,
		}, nil
	}
}

// viirsConfidence maps the VIIRS letter classes onto the canonical 0–100
// scale. Numeric strings pass through clamped, for archive exports that
// already report numbers.
func viirsConfidence(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return 30, nil
	case "n", "nominal":
		return 60, nil
	case "h", "high":
		return 90, nil
	}
	conf, err := parseFloat(s)
	if err != nil {
		return 0, fmt.Errorf("%w: confidence %q", errMalformed, s)
	}
	return clamp(conf, 0, 100), nil
}

func parseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "good":
		return QualityGood, nil
	case "1", "marginal":
		return QualityMarginal, nil
	case "2", "bad":
		return QualityBad, nil
	}
	return QualityBad, fmt.Errorf("%w: quality %q", errMalformed, s)
}

// parseAcquisition combines a FIRMS acquisition date with its optional HHMM
// time of day (e.g. "412" → 04:12 UTC). A missing or malformed time falls
// back to midnight; the date itself is required.
func parseAcquisition(date, hhmm string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: acq_date %q", errMalformed, date)
	}
	day = day.UTC()

	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) < 3 {
		return day, nil
	}
	for len(hhmm) < 4 {
		hhmm = "0" + hhmm
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return day, nil
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(mins)*time.Minute), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
