// Package boundaries loads administrative district polygons from GeoJSON.
package boundaries

import (
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// Load reads a GeoJSON FeatureCollection of district polygons. Features
// carry GADM-style properties: GID_2 (district ID), GID_1 (province ID),
// NAME_2, NAME_1, and optionally area_km2. When area_km2 is absent it is
// computed from the geodesic polygon area.
func Load(path string) ([]domain.District, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	districts := make([]domain.District, 0, len(fc.Features))
	seen := make(map[string]bool)
	for i, f := range fc.Features {
		d, err := fromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate district ID %q", d.ID)
		}
		seen[d.ID] = true
		districts = append(districts, d)
	}

	sort.Slice(districts, func(i, j int) bool { return districts[i].ID < districts[j].ID })
	return districts, nil
}

func fromFeature(f *geojson.Feature) (domain.District, error) {
	id := f.Properties.MustString("GID_2", "")
	if id == "" {
		return domain.District{}, fmt.Errorf("missing GID_2 property")
	}

	var mp orb.MultiPolygon
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	default:
		return domain.District{}, fmt.Errorf("district %s: geometry is %s, want Polygon or MultiPolygon", id, f.Geometry.GeoJSONType())
	}

	area := f.Properties.MustFloat64("area_km2", 0)
	if area <= 0 {
		area = geo.Area(mp) / 1e6
	}

	return domain.District{
		ID:         id,
		ProvinceID: f.Properties.MustString("GID_1", ""),
		Name:       f.Properties.MustString("NAME_2", id),
		Province:   f.Properties.MustString("NAME_1", ""),
		Geometry:   mp,
		AreaKm2:    area,
	}, nil
}
