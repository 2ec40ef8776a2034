package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// square returns a 1x1 district polygon with its southwest corner at (west, south).
func square(id string, west, south float64) domain.District {
	return domain.District{
		ID:   id,
		Name: "District " + id,
		Geometry: orb.MultiPolygon{{
			{
				{west, south},
				{west + 1, south},
				{west + 1, south + 1},
				{west, south + 1},
				{west, south},
			},
		}},
		AreaKm2: 100,
	}
}

func TestContaining(t *testing.T) {
	idx, err := NewIndex([]domain.District{
		square("B", 1, 0),
		square("A", 0, 0),
	})
	require.NoError(t, err)

	t.Run("interior point", func(t *testing.T) {
		d, ok := idx.Containing(orb.Point{0.5, 0.5})
		require.True(t, ok)
		assert.Equal(t, "A", d.ID)

		d, ok = idx.Containing(orb.Point{1.5, 0.5})
		require.True(t, ok)
		assert.Equal(t, "B", d.ID)
	})

	t.Run("outside all districts", func(t *testing.T) {
		_, ok := idx.Containing(orb.Point{5, 5})
		assert.False(t, ok)
	})

	t.Run("shared boundary goes to lowest ID", func(t *testing.T) {
		// (1, 0.5) lies on the edge shared by A and B.
		d, ok := idx.Containing(orb.Point{1, 0.5})
		require.True(t, ok)
		assert.Equal(t, "A", d.ID)
	})

	t.Run("insertion order does not change the tie", func(t *testing.T) {
		reversed, err := NewIndex([]domain.District{
			square("A", 0, 0),
			square("B", 1, 0),
		})
		require.NoError(t, err)

		d, ok := reversed.Containing(orb.Point{1, 0.5})
		require.True(t, ok)
		assert.Equal(t, "A", d.ID)
	})
}

func TestOverlapping(t *testing.T) {
	idx, err := NewIndex([]domain.District{
		square("A", 0, 0),
		square("B", 1, 0),
	})
	require.NoError(t, err)

	t.Run("cell fully inside one district", func(t *testing.T) {
		b := orb.Bound{Min: orb.Point{0.2, 0.2}, Max: orb.Point{0.4, 0.4}}
		overlaps := idx.Overlapping(b)

		require.Len(t, overlaps, 1)
		assert.Equal(t, "A", overlaps[0].District.ID)
		assert.InDelta(t, 1.0, overlaps[0].Fraction, 1e-9)
	})

	t.Run("cell split between two districts", func(t *testing.T) {
		b := orb.Bound{Min: orb.Point{0.8, 0.2}, Max: orb.Point{1.2, 0.6}}
		overlaps := idx.Overlapping(b)

		require.Len(t, overlaps, 2)
		assert.Equal(t, "A", overlaps[0].District.ID)
		assert.Equal(t, "B", overlaps[1].District.ID)
		assert.InDelta(t, 0.5, overlaps[0].Fraction, 1e-9)
		assert.InDelta(t, 0.5, overlaps[1].Fraction, 1e-9)
	})

	t.Run("fractions conserve total cell area", func(t *testing.T) {
		// Fully covered by the two districts together.
		b := orb.Bound{Min: orb.Point{0.5, 0.25}, Max: orb.Point{1.5, 0.75}}
		overlaps := idx.Overlapping(b)

		sum := 0.0
		for _, o := range overlaps {
			sum += o.Fraction
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	})

	t.Run("cell partially outside all districts", func(t *testing.T) {
		b := orb.Bound{Min: orb.Point{-0.5, 0.25}, Max: orb.Point{0.5, 0.75}}
		overlaps := idx.Overlapping(b)

		require.Len(t, overlaps, 1)
		assert.InDelta(t, 0.5, overlaps[0].Fraction, 1e-9)
	})

	t.Run("cell outside everything", func(t *testing.T) {
		b := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{11, 11}}
		assert.Empty(t, idx.Overlapping(b))
	})
}

func TestOverlapping_QueriesLeaveGeometryIntact(t *testing.T) {
	idx, err := NewIndex([]domain.District{
		square("A", 0, 0),
		square("B", 1, 0),
	})
	require.NoError(t, err)

	// A partial-overlap query clips against the stored polygons; repeating
	// it must read the same fractions, not the residue of the first clip.
	b := orb.Bound{Min: orb.Point{0.5, 0.25}, Max: orb.Point{1.5, 0.75}}

	first := idx.Overlapping(b)
	require.Len(t, first, 2)

	second := idx.Overlapping(b)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].District.ID, second[i].District.ID)
		assert.InDelta(t, first[i].Fraction, second[i].Fraction, 1e-12)
	}

	sum := 0.0
	for _, o := range second {
		sum += o.Fraction
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// A's stored ring still starts at its own corner, not the clip window.
	assert.Equal(t, orb.Point{0, 0}, idx.districts[0].Geometry[0][0][0])

	// Point lookups outside the clip window still resolve.
	d, ok := idx.Containing(orb.Point{0.1, 0.9})
	require.True(t, ok)
	assert.Equal(t, "A", d.ID)
}

func TestNewIndex_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name     string
		district domain.District
		reason   string
	}{
		{
			name:     "empty geometry",
			district: domain.District{ID: "X", Geometry: orb.MultiPolygon{}},
			reason:   "empty geometry",
		},
		{
			name: "degenerate ring",
			district: domain.District{ID: "X", Geometry: orb.MultiPolygon{{
				{{0, 0}, {1, 0}, {0, 0}},
			}}},
			reason: "degenerate ring",
		},
		{
			name: "unclosed ring",
			district: domain.District{ID: "X", Geometry: orb.MultiPolygon{{
				{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			}}},
			reason: "unclosed ring",
		},
		{
			name: "self-intersecting bowtie",
			district: domain.District{ID: "X", Geometry: orb.MultiPolygon{{
				{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}},
			}}},
			reason: "self-intersecting ring",
		},
		{
			name: "zero-area polygon",
			district: domain.District{ID: "X", Geometry: orb.MultiPolygon{{
				{{0, 0}, {1, 0}, {2, 0}, {1, 0}, {0, 0}},
			}}},
			reason: "zero-area polygon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIndex([]domain.District{tt.district})

			var invalid *domain.InvalidGeometryError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "X", invalid.DistrictID)
			assert.Equal(t, tt.reason, invalid.Reason)
		})
	}
}

func TestNewIndex_Empty(t *testing.T) {
	idx, err := NewIndex(nil)
	require.NoError(t, err)

	_, ok := idx.Containing(orb.Point{0, 0})
	assert.False(t, ok)
	assert.Empty(t, idx.Overlapping(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}))
}

func TestContaining_PointInHole(t *testing.T) {
	donut := domain.District{
		ID: "D",
		Geometry: orb.MultiPolygon{{
			{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
			{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}},
		}},
	}
	idx, err := NewIndex([]domain.District{donut})
	require.NoError(t, err)

	_, ok := idx.Containing(orb.Point{2, 2})
	assert.False(t, ok, "point inside the hole is not in the district")

	d, ok := idx.Containing(orb.Point{0.5, 2})
	require.True(t, ok)
	assert.Equal(t, "D", d.ID)
}
