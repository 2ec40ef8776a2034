// Package export writes the merged district table to CSV.
package export

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/hazewatch/fire-district-etl/internal/aggregate"
	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// row is the wide CSV layout: one line per district and period, sensor
// columns empty when that sensor contributed nothing.
type row struct {
	DistrictID   string `csv:"district_id"`
	DistrictName string `csv:"district_name"`
	Period       string `csv:"period"`

	MODISCount          *int     `csv:"modis_count"`
	MODISFRPSum         *float64 `csv:"modis_frp_sum_mw"`
	MODISFRPMean        *float64 `csv:"modis_frp_mean_mw"`
	MODISFRPMax         *float64 `csv:"modis_frp_max_mw"`
	MODISFireDays       *int     `csv:"modis_fire_days"`
	MODISDensity        *float64 `csv:"modis_density_per_km2"`
	MODISHighConfidence *int     `csv:"modis_high_confidence"`

	VIIRSCount          *int     `csv:"viirs_count"`
	VIIRSFRPSum         *float64 `csv:"viirs_frp_sum_mw"`
	VIIRSFRPMean        *float64 `csv:"viirs_frp_mean_mw"`
	VIIRSFRPMax         *float64 `csv:"viirs_frp_max_mw"`
	VIIRSFireDays       *int     `csv:"viirs_fire_days"`
	VIIRSDensity        *float64 `csv:"viirs_density_per_km2"`
	VIIRSHighConfidence *int     `csv:"viirs_high_confidence"`

	MOPITTCOMean   *float64 `csv:"mopitt_co_mean_ppbv"`
	MOPITTCOMin    *float64 `csv:"mopitt_co_min_ppbv"`
	MOPITTCOMax    *float64 `csv:"mopitt_co_max_ppbv"`
	MOPITTCOStd    *float64 `csv:"mopitt_co_std_ppbv"`
	MOPITTCOMedian *float64 `csv:"mopitt_co_median_ppbv"`
	MOPITTCOP95    *float64 `csv:"mopitt_co_p95_ppbv"`
	MOPITTCells    *int     `csv:"mopitt_cells"`

	AIRSCOMean   *float64 `csv:"airs_co_mean_ppbv"`
	AIRSCOMin    *float64 `csv:"airs_co_min_ppbv"`
	AIRSCOMax    *float64 `csv:"airs_co_max_ppbv"`
	AIRSCOStd    *float64 `csv:"airs_co_std_ppbv"`
	AIRSCOMedian *float64 `csv:"airs_co_median_ppbv"`
	AIRSCOP95    *float64 `csv:"airs_co_p95_ppbv"`
	AIRSCells    *int     `csv:"airs_cells"`
}

// WriteCSV writes the merged table to path, overwriting any existing file.
func WriteCSV(path string, rows []aggregate.CombinedRow) error {
	out := make([]*row, 0, len(rows))
	for _, cr := range rows {
		out = append(out, flatten(cr))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&out, f); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func flatten(cr aggregate.CombinedRow) *row {
	r := &row{
		DistrictID:   cr.DistrictID,
		DistrictName: cr.DistrictName,
		Period:       cr.Period,
	}

	if stat := cr.Sensors[domain.SensorMODIS]; stat != nil && stat.Fire != nil {
		fire := stat.Fire
		r.MODISCount = intPtr(fire.Count)
		r.MODISFRPSum = floatPtr(fire.FRPSum)
		r.MODISFRPMean = fire.FRPMean
		r.MODISFRPMax = fire.FRPMax
		r.MODISFireDays = intPtr(fire.FireDays)
		r.MODISDensity = floatPtr(fire.DensityPerKm2)
		r.MODISHighConfidence = intPtr(fire.HighConfidence)
	}
	if stat := cr.Sensors[domain.SensorVIIRS]; stat != nil && stat.Fire != nil {
		fire := stat.Fire
		r.VIIRSCount = intPtr(fire.Count)
		r.VIIRSFRPSum = floatPtr(fire.FRPSum)
		r.VIIRSFRPMean = fire.FRPMean
		r.VIIRSFRPMax = fire.FRPMax
		r.VIIRSFireDays = intPtr(fire.FireDays)
		r.VIIRSDensity = floatPtr(fire.DensityPerKm2)
		r.VIIRSHighConfidence = intPtr(fire.HighConfidence)
	}
	if stat := cr.Sensors[domain.SensorMOPITT]; stat != nil && stat.CO != nil {
		co := stat.CO
		r.MOPITTCOMean = floatPtr(co.WeightedMean)
		r.MOPITTCOMin = floatPtr(co.Min)
		r.MOPITTCOMax = floatPtr(co.Max)
		r.MOPITTCOStd = floatPtr(co.Std)
		r.MOPITTCOMedian = floatPtr(co.Median)
		r.MOPITTCOP95 = floatPtr(co.P95)
		r.MOPITTCells = intPtr(co.Cells)
	}
	if stat := cr.Sensors[domain.SensorAIRS]; stat != nil && stat.CO != nil {
		co := stat.CO
		r.AIRSCOMean = floatPtr(co.WeightedMean)
		r.AIRSCOMin = floatPtr(co.Min)
		r.AIRSCOMax = floatPtr(co.Max)
		r.AIRSCOStd = floatPtr(co.Std)
		r.AIRSCOMedian = floatPtr(co.Median)
		r.AIRSCOP95 = floatPtr(co.P95)
		r.AIRSCells = intPtr(co.Cells)
	}
	return r
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
