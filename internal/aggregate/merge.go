package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// CombinedRow is one district-period of the merged wide table, with one
// column group per sensor. A sensor that contributed no records for this
// district-period is simply absent from Sensors, an explicit null rather
// than a zero.
type CombinedRow struct {
	DistrictID   string                                `json:"district_id"`
	DistrictName string                                `json:"district_name"`
	Period       string                                `json:"period"`
	Sensors      map[domain.Sensor]*DistrictPeriodStat `json:"sensors"`
}

// SourceReport is one source's accounting in the run manifest.
type SourceReport struct {
	Sensor         domain.Sensor `json:"sensor"`
	Records        int           `json:"records"`
	DroppedQuality int           `json:"dropped_quality"`
	Malformed      int           `json:"malformed"`
	Unassigned     int           `json:"unassigned"`
	// Failure is the per-source error, empty on success. A failed source
	// contributed nothing to the merged table.
	Failure string `json:"failure,omitempty"`
}

// Failed reports whether this source was excluded from the merge.
func (r SourceReport) Failed() bool { return r.Failure != "" }

// Manifest travels with every combined result so partial results are never
// presented as complete: it records what each source contributed, dropped,
// and whether it failed.
type Manifest struct {
	GeneratedAt time.Time          `json:"generated_at"`
	DateRange   domain.DateRange   `json:"date_range"`
	Granularity domain.Granularity `json:"granularity"`
	Sources     []SourceReport     `json:"sources"`
}

// CombinedResult is the run's full output: the merged wide table, the
// dataset summary, and the manifest.
type CombinedResult struct {
	Rows     []CombinedRow `json:"rows"`
	Summary  Summary       `json:"summary"`
	Manifest Manifest      `json:"manifest"`
}

// MergeTables outer-joins per-sensor tables on (district, period). Every
// district-period appearing in any table gets a row; each sensor's column
// group is present only where that sensor produced statistics. A duplicate
// (district, sensor, period) key is a defect in the producing aggregator
// and fails the merge.
func MergeTables(tables map[domain.Sensor][]DistrictPeriodStat) ([]CombinedRow, error) {
	type rowKey struct {
		districtID string
		period     string
	}
	rows := make(map[rowKey]*CombinedRow)

	for sensor, table := range tables {
		for i := range table {
			stat := table[i]
			key := rowKey{districtID: stat.DistrictID, period: stat.Period}
			row := rows[key]
			if row == nil {
				row = &CombinedRow{
					DistrictID:   stat.DistrictID,
					DistrictName: stat.DistrictName,
					Period:       stat.Period,
					Sensors:      make(map[domain.Sensor]*DistrictPeriodStat),
				}
				rows[key] = row
			}
			if _, dup := row.Sensors[sensor]; dup {
				return nil, fmt.Errorf("duplicate key (%s, %s, %s) in %s table",
					stat.DistrictID, sensor, stat.Period, sensor)
			}
			row.Sensors[sensor] = &stat
		}
	}

	merged := make([]CombinedRow, 0, len(rows))
	for _, row := range rows {
		merged = append(merged, *row)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].DistrictID != merged[j].DistrictID {
			return merged[i].DistrictID < merged[j].DistrictID
		}
		return merged[i].Period < merged[j].Period
	})
	return merged, nil
}
