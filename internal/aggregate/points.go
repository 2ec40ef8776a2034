package aggregate

import (
	"sort"
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

type fireAccum struct {
	district *domain.District
	count    int
	frpSum   float64
	frpMax   float64
	frpN     int
	highConf int
	days     map[string]struct{}
	first    time.Time
	last     time.Time
}

// AggregatePoints assigns harmonized fire detections to districts and
// reduces them to per-(district, sensor, period) statistics. Detections
// outside every district are excluded from district totals but counted in
// counters.Unassigned so the run manifest stays auditable.
func AggregatePoints(records []domain.HarmonizedRecord, index spatial.Index, period domain.PeriodFunc, counters *domain.RunCounters) []DistrictPeriodStat {
	accums := make(map[Key]*fireAccum)

	for _, rec := range records {
		d, ok := index.Containing(rec.Point)
		if !ok {
			counters.Unassigned++
			continue
		}

		key := Key{DistrictID: d.ID, Sensor: rec.Sensor, Period: period(rec.Time)}
		a := accums[key]
		if a == nil {
			a = &fireAccum{district: d, days: make(map[string]struct{})}
			accums[key] = a
		}

		a.count++
		if rec.FRP != nil {
			a.frpSum += *rec.FRP
			if a.frpN == 0 || *rec.FRP > a.frpMax {
				a.frpMax = *rec.FRP
			}
			a.frpN++
		}
		if rec.Confidence >= highConfidenceMin {
			a.highConf++
		}
		a.days[rec.Time.UTC().Format("2006-01-02")] = struct{}{}
		if a.count == 1 || rec.Time.Before(a.first) {
			a.first = rec.Time
		}
		if rec.Time.After(a.last) {
			a.last = rec.Time
		}
	}

	stats := make([]DistrictPeriodStat, 0, len(accums))
	for key, a := range accums {
		fire := &FireStats{
			Count:          a.count,
			FRPSum:         a.frpSum,
			FireDays:       len(a.days),
			HighConfidence: a.highConf,
			FirstSeen:      a.first,
			LastSeen:       a.last,
		}
		if a.frpN > 0 {
			frpMax := a.frpMax
			frpMean := a.frpSum / float64(a.frpN)
			fire.FRPMax = &frpMax
			fire.FRPMean = &frpMean
		}
		if a.district.AreaKm2 > 0 {
			fire.DensityPerKm2 = float64(a.count) / a.district.AreaKm2
		}
		stats = append(stats, DistrictPeriodStat{
			DistrictID:   key.DistrictID,
			DistrictName: a.district.Name,
			Sensor:       key.Sensor,
			Period:       key.Period,
			Fire:         fire,
		})
	}

	sortStats(stats)
	return stats
}

// sortStats orders a table by (district, period) so identical inputs always
// produce identical tables regardless of map iteration order.
func sortStats(stats []DistrictPeriodStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].DistrictID != stats[j].DistrictID {
			return stats[i].DistrictID < stats[j].DistrictID
		}
		return stats[i].Period < stats[j].Period
	})
}
