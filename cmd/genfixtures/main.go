// Command genfixtures generates deterministic synthetic fixtures for the
// aggregation test suites: a district boundary GeoJSON and FIRMS-style
// detection CSVs. It runs the actual harmonization and aggregation code so
// the printed statistics match real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genfixtures -out-dir data/fixtures
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hazewatch/fire-district-etl/internal/aggregate"
	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

const seed = 20230801

var baseDate = time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "output directory for fixtures")
	days := flag.Int("days", 14, "number of days of detections to generate")
	detections := flag.Int("detections", 400, "detections per sensor")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	districts := makeDistricts()
	if err := writeGeoJSON(filepath.Join(*outDir, "districts.geojson"), districts); err != nil {
		return fmt.Errorf("writing districts: %w", err)
	}
	log.Printf("wrote %d districts", len(districts))

	rng := rand.New(rand.NewSource(seed))
	for _, sensor := range []domain.Sensor{domain.SensorMODIS, domain.SensorVIIRS} {
		path := filepath.Join(*outDir, string(sensor)+"_detections.csv")
		raws := makeDetections(rng, sensor, *days, *detections)
		if err := writeCSV(path, raws); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s: %d detections", path, len(raws))

		printStats(sensor, raws, districts)
	}
	return nil
}

// makeDistricts lays out a 3x3 block of adjacent 1-degree square districts
// covering (110..113, -3..0), roughly central Kalimantan.
func makeDistricts() []domain.District {
	var districts []domain.District
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			west := 110.0 + float64(col)
			south := -3.0 + float64(row)
			id := fmt.Sprintf("IDN.F%d.%d_1", row+1, col+1)
			districts = append(districts, domain.District{
				ID:         id,
				ProvinceID: fmt.Sprintf("IDN.F%d_1", row+1),
				Name:       fmt.Sprintf("District %d-%d", row+1, col+1),
				Province:   fmt.Sprintf("Province %d", row+1),
				Geometry: orb.MultiPolygon{{
					{
						{west, south},
						{west + 1, south},
						{west + 1, south + 1},
						{west, south + 1},
						{west, south},
					},
				}},
			})
		}
	}
	return districts
}

func makeDetections(rng *rand.Rand, sensor domain.Sensor, days, count int) []domain.RawRecord {
	raws := make([]domain.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		day := baseDate.AddDate(0, 0, rng.Intn(days))
		lon := 110.0 + rng.Float64()*3
		lat := -3.0 + rng.Float64()*3

		rec := domain.RawRecord{
			"latitude":  fmt.Sprintf("%.5f", lat),
			"longitude": fmt.Sprintf("%.5f", lon),
			"acq_date":  day.Format("2006-01-02"),
			"acq_time":  fmt.Sprintf("%02d%02d", rng.Intn(24), rng.Intn(60)),
			"frp":       fmt.Sprintf("%.1f", 5+rng.Float64()*80),
			"daynight":  pick(rng, "D", "N"),
		}
		if sensor == domain.SensorVIIRS {
			rec["confidence"] = pick(rng, "l", "n", "h")
		} else {
			rec["confidence"] = fmt.Sprintf("%d", rng.Intn(101))
		}
		raws = append(raws, rec)
	}
	return raws
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func writeGeoJSON(path string, districts []domain.District) error {
	fc := geojson.NewFeatureCollection()
	for _, d := range districts {
		f := geojson.NewFeature(d.Geometry)
		f.Properties = geojson.Properties{
			"GID_2":  d.ID,
			"GID_1":  d.ProvinceID,
			"NAME_2": d.Name,
			"NAME_1": d.Province,
		}
		fc.Append(f)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

var csvColumns = []string{"latitude", "longitude", "acq_date", "acq_time", "confidence", "frp", "daynight"}

func writeCSV(path string, raws []domain.RawRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, rec := range raws {
		row := make([]string, len(csvColumns))
		for i, col := range csvColumns {
			row[i] = rec[col]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// printStats runs the real pipeline over the generated detections and prints
// the numbers test assertions should expect.
func printStats(sensor domain.Sensor, raws []domain.RawRecord, districts []domain.District) {
	index, err := spatial.NewIndex(districts)
	if err != nil {
		log.Fatalf("index fixtures: %v", err)
	}

	policy := domain.QualityPolicy{MinConfidence: 70}
	if sensor == domain.SensorVIIRS {
		policy.MinConfidence = 60
	}

	counters := &domain.RunCounters{}
	records, err := domain.Normalize(sensor, raws, policy, counters)
	if err != nil {
		log.Fatalf("normalize fixtures: %v", err)
	}
	table := aggregate.AggregatePoints(records, index, domain.GranularityMonth.PeriodFunc(), counters)

	total := 0
	for i := range table {
		total += table[i].Fire.Count
	}
	fmt.Printf("\n=== %s stats for test assertions ===\n", sensor)
	fmt.Printf("Input: %d, dropped by quality: %d, malformed: %d, unassigned: %d\n",
		counters.Input, counters.DroppedQuality, counters.Malformed, counters.Unassigned)
	fmt.Printf("Rows: %d, assigned detections: %d\n", len(table), total)
}
