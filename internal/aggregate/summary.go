package aggregate

import (
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// Summary is the dataset-level view of a merged table: per-sensor totals
// and temporal coverage, the numbers a run logs and reports first.
type Summary struct {
	Districts int `json:"districts"`
	Periods   int `json:"periods"`

	Detections         map[domain.Sensor]int     `json:"detections"`
	DistrictsWithFires map[domain.Sensor]int     `json:"districts_with_fires"`
	TotalFRP           map[domain.Sensor]float64 `json:"total_frp_mw"`

	// FirstDetection and LastDetection are zero when no fire sensor
	// contributed any detection.
	FirstDetection time.Time `json:"first_detection"`
	LastDetection  time.Time `json:"last_detection"`
}

// Summarize computes the dataset summary over a merged table.
func Summarize(rows []CombinedRow) Summary {
	s := Summary{
		Detections:         make(map[domain.Sensor]int),
		DistrictsWithFires: make(map[domain.Sensor]int),
		TotalFRP:           make(map[domain.Sensor]float64),
	}

	districts := make(map[string]struct{})
	periods := make(map[string]struct{})
	fireDistricts := make(map[domain.Sensor]map[string]struct{})

	for _, row := range rows {
		districts[row.DistrictID] = struct{}{}
		periods[row.Period] = struct{}{}

		for sensor, stat := range row.Sensors {
			if stat.Fire == nil {
				continue
			}
			s.Detections[sensor] += stat.Fire.Count
			s.TotalFRP[sensor] += stat.Fire.FRPSum

			if fireDistricts[sensor] == nil {
				fireDistricts[sensor] = make(map[string]struct{})
			}
			fireDistricts[sensor][row.DistrictID] = struct{}{}

			if s.FirstDetection.IsZero() || stat.Fire.FirstSeen.Before(s.FirstDetection) {
				s.FirstDetection = stat.Fire.FirstSeen
			}
			if stat.Fire.LastSeen.After(s.LastDetection) {
				s.LastDetection = stat.Fire.LastSeen
			}
		}
	}

	s.Districts = len(districts)
	s.Periods = len(periods)
	for sensor, set := range fireDistricts {
		s.DistrictsWithFires[sensor] = len(set)
	}
	return s
}
