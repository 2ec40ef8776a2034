// Package netcdf reads gridded carbon monoxide fields from NetCDF files
// and exposes the cells as raw records for harmonization.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// Fetcher implements pipeline.RawFetcher over a directory of NetCDF files.
// Files are named <sensor>_<anything>.nc; each holds dims (time, lat, lon)
// with variables co_mixing_ratio and quality_flag.
type Fetcher struct {
	dir    string
	logger *slog.Logger
}

// NewFetcher creates a fetcher reading CO grids from dir.
func NewFetcher(dir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{dir: dir, logger: logger}
}

// FetchRaw scans the sensor's files and returns every grid cell whose
// timestamp falls inside the date range.
func (f *Fetcher) FetchRaw(ctx context.Context, sensor domain.Sensor, dr domain.DateRange) ([]domain.RawRecord, error) {
	paths, err := filepath.Glob(filepath.Join(f.dir, string(sensor)+"_*.nc"))
	if err != nil {
		return nil, fmt.Errorf("glob %s files: %w", sensor, err)
	}
	sort.Strings(paths)

	var records []domain.RawRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileRecs, err := scanFile(path, dr)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", filepath.Base(path), err)
		}
		records = append(records, fileRecs...)
	}

	f.logger.Debug("NetCDF scan complete", "sensor", sensor, "files", len(paths), "records", len(records))
	return records, nil
}

// scanner reads one file's CO field a timestamp at a time.
type scanner struct {
	nc      api.Group
	lat     []float32
	lon     []float32
	ts      []time.Time
	co      api.VarGetter
	quality api.VarGetter
	pos     int
}

func newScanner(path string) (*scanner, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	s := &scanner{nc: nc}
	s.lat, err = dimValues[float32](nc, "lat")
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.lon, err = dimValues[float32](nc, "lon")
	if err != nil {
		nc.Close()
		return nil, err
	}
	// time is days since the Unix epoch.
	days, err := dimValues[int32](nc, "time")
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.ts = make([]time.Time, len(days))
	for i, d := range days {
		s.ts[i] = time.Unix(int64(d)*86400, 0).UTC()
	}
	s.co, err = nc.GetVarGetter("co_mixing_ratio")
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.quality, err = nc.GetVarGetter("quality_flag")
	if err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

func dimValues[T int32 | float32](nc api.Group, dimName string) ([]T, error) {
	dim, err := nc.GetVarGetter(dimName)
	if err != nil {
		return nil, err
	}
	v, err := dim.Values()
	if err != nil {
		return nil, err
	}
	vals, ok := v.([]T)
	if !ok {
		return nil, fmt.Errorf("variable %q has unexpected type %T", dimName, v)
	}
	return vals, nil
}

func (s *scanner) close() {
	s.nc.Close()
}

func scanFile(path string, dr domain.DateRange) ([]domain.RawRecord, error) {
	s, err := newScanner(path)
	if err != nil {
		return nil, err
	}
	defer s.close()

	var records []domain.RawRecord
	for ; s.pos < len(s.ts); s.pos++ {
		ts := s.ts[s.pos]
		if !dr.Contains(ts) {
			continue
		}

		co, err := s.slice2D(s.co, "co_mixing_ratio")
		if err != nil {
			return nil, err
		}
		quality, err := s.slice2DInt(s.quality, "quality_flag")
		if err != nil {
			return nil, err
		}

		date := ts.Format("2006-01-02")
		for i, la := range s.lat {
			for j, lo := range s.lon {
				records = append(records, domain.RawRecord{
					"lat":     strconv.FormatFloat(float64(la), 'f', -1, 32),
					"lon":     strconv.FormatFloat(float64(lo), 'f', -1, 32),
					"date":    date,
					"co_ppbv": strconv.FormatFloat(float64(co[i][j]), 'f', -1, 32),
					"quality": strconv.Itoa(int(quality[i][j])),
				})
			}
		}
	}
	return records, nil
}

func (s *scanner) slice2D(vg api.VarGetter, name string) ([][]float32, error) {
	begin := int64(s.pos)
	v, err := vg.GetSlice(begin, begin+1)
	if err != nil {
		return nil, err
	}
	grid, ok := v.([][][]float32)
	if !ok || len(grid) == 0 {
		return nil, fmt.Errorf("variable %q has unexpected shape %T", name, v)
	}
	return grid[0], nil
}

func (s *scanner) slice2DInt(vg api.VarGetter, name string) ([][]int8, error) {
	begin := int64(s.pos)
	v, err := vg.GetSlice(begin, begin+1)
	if err != nil {
		return nil, err
	}
	grid, ok := v.([][][]int8)
	if !ok || len(grid) == 0 {
		return nil, fmt.Errorf("variable %q has unexpected shape %T", name, v)
	}
	return grid[0], nil
}
