package domain

import "github.com/paulmach/orb"

// District is one third-level administrative polygon (kabupaten/kota), the
// aggregation unit for all statistics. Districts load once per run and are
// read-only for its duration; aggregation tasks share them by pointer.
type District struct {
	// ID is the stable district identifier (GADM GID_2 style, e.g. "IDN.1.3_1").
	// It breaks ties when a point sits exactly on a shared boundary: the
	// lexicographically lowest ID wins.
	ID         string
	ProvinceID string
	Name       string
	Province   string
	// Geometry in WGS84 degrees, lon/lat order.
	Geometry orb.MultiPolygon
	AreaKm2  float64
}
