// Command validate performs integrity checks on a district boundary file
// before it is handed to the aggregation service: geometry validity,
// attribute completeness, area plausibility, and point-assignment sanity.
//
// Usage:
//
//	go run ./cmd/validate -boundaries data/districts.geojson
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/hazewatch/fire-district-etl/internal/adapter/boundaries"
	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	boundariesPath := flag.String("boundaries", "", "path to district boundary GeoJSON")
	flag.Parse()

	if *boundariesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*boundariesPath); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== District Boundary Validation ===")
	fmt.Println()

	districts, err := boundaries.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load boundaries: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGeometries(districts),
		validateAttributes(districts),
		validateAreas(districts),
		validateAssignment(districts),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Districts: %d\n", len(districts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Geometry ──
// Every polygon must be closed, non-degenerate, and free of
// self-intersections, the same checks the aggregation index applies.

func validateGeometries(districts []domain.District) *phase {
	p := &phase{name: "Phase 1: Geometry validity"}
	for _, d := range districts {
		if err := spatial.Validate(d); err != nil {
			p.errorf("%v", err)
		}
	}
	return p
}

// ── Phase 2: Attributes ──

func validateAttributes(districts []domain.District) *phase {
	p := &phase{name: "Phase 2: Attribute completeness"}
	for _, d := range districts {
		if d.Name == "" {
			p.errorf("district %s: missing name", d.ID)
		}
		if d.ProvinceID == "" {
			p.errorf("district %s: missing province ID", d.ID)
		}
		if d.AreaKm2 <= 0 {
			p.errorf("district %s: non-positive area %g km2", d.ID, d.AreaKm2)
		}
	}
	return p
}

// ── Phase 3: Areas ──
// The stored area_km2 must agree with the geodesic area of the geometry
// within 5%, catching stale or mis-scaled attributes.

func validateAreas(districts []domain.District) *phase {
	p := &phase{name: "Phase 3: Area plausibility"}
	for _, d := range districts {
		computed := geo.Area(d.Geometry) / 1e6
		if computed <= 0 {
			p.errorf("district %s: computed area is %g km2", d.ID, computed)
			continue
		}
		if d.AreaKm2 <= 0 {
			continue // reported in phase 2
		}
		diff := math.Abs(d.AreaKm2-computed) / computed
		if diff > 0.05 {
			p.errorf("district %s: area_km2=%.1f but geometry measures %.1f km2 (%.1f%% off)",
				d.ID, d.AreaKm2, computed, diff*100)
		}
	}
	return p
}

// ── Phase 4: Assignment ──
// Builds the production index and checks that an interior point of every
// district assigns back to that district.

func validateAssignment(districts []domain.District) *phase {
	p := &phase{name: "Phase 4: Point assignment"}

	index, err := spatial.NewIndex(districts)
	if err != nil {
		p.errorf("index build failed: %v", err)
		return p
	}

	for _, d := range districts {
		probe, _ := planar.CentroidArea(d.Geometry)
		if !planar.MultiPolygonContains(d.Geometry, probe) {
			// A concave district's centroid can fall outside its own
			// polygon; no interior probe to check in that case.
			continue
		}
		got, found := index.Containing(probe)
		if !found {
			p.errorf("district %s: centroid assigns to no district", d.ID)
		} else if got.ID != d.ID {
			p.errorf("district %s: centroid assigned to %s", d.ID, got.ID)
		}
	}
	return p
}
