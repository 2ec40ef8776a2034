// Package domain models satellite fire detections and carbon-monoxide (CO)
// retrievals, and harmonizes the per-sensor raw schemas into one canonical
// record shape ahead of district aggregation.
//
// # Data Sources
//
// Active-fire points come from NASA FIRMS (Fire Information for Resource
// Management System) CSV products: MODIS Collection 6.1 and VIIRS S-NPP.
// CO retrievals come from MOPITT (Terra) and AIRS (Aqua) gridded products.
// Upstream adapters deliver both as flat field maps ([RawRecord]); this
// package owns the meaning of those fields.
//
// # Confidence Scales
//
// The two fire sensors report detection confidence differently:
//
//	MODIS: numeric 0–100, used as-is on the canonical scale.
//	VIIRS: letter classes "l" (low), "n" (nominal), "h" (high), mapped to
//	       30 / 60 / 90 on the canonical 0–100 scale. Numeric strings are
//	       also accepted since some FIRMS archive exports use them.
//
// A harmonized record always carries confidence in [0,100]; the per-sensor
// minimum threshold in [QualityPolicy] is expressed on that scale.
//
// # CO Quality Flags
//
// MOPITT and AIRS retrievals carry an integer retrieval-quality flag:
//
//	0 → good, 1 → marginal, 2 → bad
//
// Bad cells never contribute to a statistic. Marginal cells contribute only
// when the policy opts in ([QualityPolicy.AcceptMarginal]).
//
// # Grid Geometry
//
// CO cells are squares described by centroid plus half-width in degrees:
//
//	MOPITT: 0.1° half-width (~22 km cells)
//	AIRS:   0.5° half-width (1° level-3 grid)
//
// # Timestamps
//
// FIRMS acquisition dates are "YYYY-MM-DD" with an optional "HHMM" time of
// day; CO records carry a calendar date. Harmonization normalizes every
// record to a UTC calendar date, which is the unit period bucketing
// operates on.
//
// # Drop Accounting
//
// Records rejected by the quality policy or carrying unparseable values are
// never silently discarded: each source task owns a [RunCounters] value and
// every drop is counted there, so the run manifest can report exactly how
// much input was excluded and why.
package domain
