// Package spatial indexes district polygons for point-containment and
// rectangle-overlap queries. The index is built once per run and is
// read-only afterwards, so concurrent aggregation tasks can query it
// without locking.
package spatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// Overlap pairs a district with the fraction of a query rectangle's area
// lying inside that district's polygon. Fractions need not sum to 1 since
// the rectangle may extend outside all districts.
type Overlap struct {
	District *domain.District
	Fraction float64
}

// Index answers spatial queries against the district set. The two
// capabilities are deliberately narrow so the underlying structure can be
// swapped without touching the aggregators.
type Index interface {
	// Containing returns the district whose polygon contains the point, or
	// false if the point falls outside every district. A point on a shared
	// boundary goes to the district with the lowest ID.
	Containing(p orb.Point) (*domain.District, bool)
	// Overlapping returns every district intersecting the rectangle, each
	// with its overlap fraction, sorted by district ID.
	Overlapping(b orb.Bound) []Overlap
}

// GridIndex buckets district bounding boxes into a uniform lon/lat grid so
// queries only examine districts whose box overlaps the query cell range,
// keeping point-assignment cost independent of the total district count.
type GridIndex struct {
	districts []*domain.District
	bounds    []orb.Bound

	origin       orb.Point
	cellW, cellH float64
	nx, ny       int
	cells        map[[2]int][]int
}

// NewIndex validates every district geometry and builds the grid. Any
// empty, unclosed, degenerate, or self-intersecting polygon aborts the
// build with an InvalidGeometryError.
func NewIndex(districts []domain.District) (*GridIndex, error) {
	idx := &GridIndex{
		districts: make([]*domain.District, len(districts)),
		bounds:    make([]orb.Bound, len(districts)),
		cells:     make(map[[2]int][]int),
	}

	var union orb.Bound
	for i := range districts {
		d := districts[i]
		if err := validateGeometry(&d); err != nil {
			return nil, err
		}
		idx.districts[i] = &d
		idx.bounds[i] = d.Geometry.Bound()
		if i == 0 {
			union = idx.bounds[i]
		} else {
			union = union.Union(idx.bounds[i])
		}
	}
	if len(districts) == 0 {
		return idx, nil
	}

	// Roughly 4n cells keeps the average bucket small without wasting
	// memory on sparse grids.
	n := int(math.Ceil(math.Sqrt(float64(len(districts))))) * 2
	idx.nx, idx.ny = n, n
	idx.origin = union.Min
	idx.cellW = (union.Max[0] - union.Min[0]) / float64(n)
	idx.cellH = (union.Max[1] - union.Min[1]) / float64(n)
	if idx.cellW <= 0 {
		idx.cellW = 1
	}
	if idx.cellH <= 0 {
		idx.cellH = 1
	}

	for i, b := range idx.bounds {
		x0, y0 := idx.cellOf(b.Min)
		x1, y1 := idx.cellOf(b.Max)
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				key := [2]int{x, y}
				idx.cells[key] = append(idx.cells[key], i)
			}
		}
	}
	return idx, nil
}

func (g *GridIndex) cellOf(p orb.Point) (int, int) {
	x := int((p[0] - g.origin[0]) / g.cellW)
	y := int((p[1] - g.origin[1]) / g.cellH)
	return clampInt(x, 0, g.nx-1), clampInt(y, 0, g.ny-1)
}

// Containing implements Index. Ties on shared boundaries resolve to the
// district with the lexicographically lowest ID, so assignment is
// deterministic regardless of input order.
func (g *GridIndex) Containing(p orb.Point) (*domain.District, bool) {
	if len(g.districts) == 0 {
		return nil, false
	}
	x, y := g.cellOf(p)

	var best *domain.District
	for _, i := range g.cells[[2]int{x, y}] {
		if !g.bounds[i].Contains(p) {
			continue
		}
		d := g.districts[i]
		if !planar.MultiPolygonContains(d.Geometry, p) {
			continue
		}
		if best == nil || d.ID < best.ID {
			best = d
		}
	}
	return best, best != nil
}

// Overlapping implements Index. The fraction is area(rect ∩ polygon) over
// area(rect), both measured planar in degree space so the ratio is exact.
func (g *GridIndex) Overlapping(b orb.Bound) []Overlap {
	rectArea := (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
	if rectArea <= 0 || len(g.districts) == 0 {
		return nil
	}

	x0, y0 := g.cellOf(b.Min)
	x1, y1 := g.cellOf(b.Max)
	seen := make(map[int]bool)
	var overlaps []Overlap

	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for _, i := range g.cells[[2]int{x, y}] {
				if seen[i] {
					continue
				}
				seen[i] = true
				if !b.Intersects(g.bounds[i]) {
					continue
				}
				// clip uses its input as scratch space, so it must work on a
				// copy or the stored geometry would be corrupted in place.
				clipped := clip.Geometry(b, g.districts[i].Geometry.Clone())
				if clipped == nil {
					continue
				}
				frac := math.Abs(planar.Area(clipped)) / rectArea
				if frac > 0 {
					overlaps = append(overlaps, Overlap{District: g.districts[i], Fraction: frac})
				}
			}
		}
	}

	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].District.ID < overlaps[j].District.ID
	})
	return overlaps
}

// Validate checks one district's geometry without building an index. The
// boundary validation command uses it to report every defect instead of
// stopping at the first.
func Validate(d domain.District) error {
	return validateGeometry(&d)
}

func validateGeometry(d *domain.District) error {
	if len(d.Geometry) == 0 {
		return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "empty geometry"}
	}
	for _, poly := range d.Geometry {
		if len(poly) == 0 {
			return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "polygon without rings"}
		}
		for _, ring := range poly {
			if len(ring) < 4 {
				return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "degenerate ring"}
			}
			if !ring.Closed() {
				return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "unclosed ring"}
			}
			if selfIntersecting(ring) {
				return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "self-intersecting ring"}
			}
		}
		if math.Abs(planar.Area(poly)) == 0 {
			return &domain.InvalidGeometryError{DistrictID: d.ID, Reason: "zero-area polygon"}
		}
	}
	return nil
}

// selfIntersecting checks every non-adjacent segment pair for a proper
// crossing. Quadratic per ring, which is fine at district-polygon sizes;
// it runs once at index build, not per query.
func selfIntersecting(ring orb.Ring) bool {
	n := len(ring) - 1 // last point repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last segments share a vertex
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
