package aggregate

import (
	"math"
	"sort"

	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

type weightedSample struct {
	value  float64
	weight float64
}

type gridAccum struct {
	district  *domain.District
	weightSum float64
	valueSum  float64 // Σ fraction·value
	min       float64
	max       float64
	cells     int
	samples   []weightedSample
}

// AggregateGrid spreads each CO grid cell over the districts it overlaps,
// weighting the cell's value by the overlap fraction. Cells are coarser
// than many districts, so a centroid-containment test would silently drop
// small districts entirely; area weighting gives every overlapped district
// its proportional share. Cells overlapping no district count as
// unassigned.
func AggregateGrid(records []domain.HarmonizedRecord, index spatial.Index, period domain.PeriodFunc, counters *domain.RunCounters) []DistrictPeriodStat {
	accums := make(map[Key]*gridAccum)

	for _, rec := range records {
		overlaps := index.Overlapping(rec.Bound())
		if len(overlaps) == 0 {
			counters.Unassigned++
			continue
		}

		periodKey := period(rec.Time)
		for _, ov := range overlaps {
			key := Key{DistrictID: ov.District.ID, Sensor: rec.Sensor, Period: periodKey}
			a := accums[key]
			if a == nil {
				a = &gridAccum{district: ov.District}
				accums[key] = a
			}
			a.valueSum += ov.Fraction * rec.Value
			a.weightSum += ov.Fraction
			a.samples = append(a.samples, weightedSample{value: rec.Value, weight: ov.Fraction})
			if a.cells == 0 || rec.Value < a.min {
				a.min = rec.Value
			}
			if a.cells == 0 || rec.Value > a.max {
				a.max = rec.Value
			}
			a.cells++
		}
	}

	stats := make([]DistrictPeriodStat, 0, len(accums))
	for key, a := range accums {
		if a.weightSum <= 0 {
			// No cell area actually informed this district-period; emit
			// nothing rather than a zero that reads as a measurement.
			continue
		}
		mean := a.valueSum / a.weightSum
		stats = append(stats, DistrictPeriodStat{
			DistrictID:   key.DistrictID,
			DistrictName: a.district.Name,
			Sensor:       key.Sensor,
			Period:       key.Period,
			CO: &COStats{
				WeightedMean: mean,
				Min:          a.min,
				Max:          a.max,
				Std:          weightedStd(a.samples, mean, a.weightSum),
				Median:       weightedQuantile(a.samples, a.weightSum, 0.5),
				P95:          weightedQuantile(a.samples, a.weightSum, 0.95),
				WeightSum:    a.weightSum,
				Cells:        a.cells,
			},
		})
	}

	sortStats(stats)
	return stats
}

// weightedStd is the overlap-weighted population deviation of the cell
// values around the weighted mean.
func weightedStd(samples []weightedSample, mean, weightSum float64) float64 {
	var sum float64
	for _, s := range samples {
		d := s.value - mean
		sum += s.weight * d * d
	}
	return math.Sqrt(sum / weightSum)
}

// weightedQuantile returns the smallest cell value at which the cumulative
// overlap weight reaches q of the total.
func weightedQuantile(samples []weightedSample, weightSum, q float64) float64 {
	sorted := make([]weightedSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].value < sorted[j].value })

	target := q * weightSum
	cum := 0.0
	for _, s := range sorted {
		cum += s.weight
		if cum >= target {
			return s.value
		}
	}
	return sorted[len(sorted)-1].value
}
