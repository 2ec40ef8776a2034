package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/observability"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

type fakeFetcher struct {
	records []domain.RawRecord
	err     error
	calls   int
}

func (f *fakeFetcher) FetchRaw(_ context.Context, _ domain.Sensor, _ domain.DateRange) ([]domain.RawRecord, error) {
	f.calls++
	return f.records, f.err
}

func fireRaws() []domain.RawRecord {
	return []domain.RawRecord{
		{"latitude": "0.5", "longitude": "0.5", "acq_date": "2023-08-01", "acq_time": "412", "confidence": "85", "frp": "12.5", "daynight": "D"},
		{"latitude": "0.6", "longitude": "0.4", "acq_date": "2023-08-02", "acq_time": "1300", "confidence": "40", "frp": "8.0", "daynight": "N"},
	}
}

func coRaws() []domain.RawRecord {
	return []domain.RawRecord{
		{"lat": "0.5", "lon": "0.5", "date": "2023-08-01", "co_ppbv": "140", "quality": "0"},
	}
}

func testIndex(t *testing.T) spatial.Index {
	t.Helper()
	idx, err := spatial.NewIndex([]domain.District{{
		ID:   "A",
		Name: "District A",
		Geometry: orb.MultiPolygon{{
			{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
		}},
		AreaKm2: 100,
	}})
	require.NoError(t, err)
	return idx
}

func testRange() domain.DateRange {
	return domain.DateRange{
		Start: time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 8, 14, 0, 0, 0, 0, time.UTC),
	}
}

func newTestPipeline(t *testing.T, sources []Source) *Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testIndex(t), sources, testRange(), domain.GranularityMonth, 2, logger, observability.NewMetricsForTesting())
}

func TestPipelineRun(t *testing.T) {
	fixed := time.Date(2023, 8, 15, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	t.Run("two sources merge into one result", func(t *testing.T) {
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: &fakeFetcher{records: fireRaws()}, Policy: domain.QualityPolicy{MinConfidence: 70}},
			{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
		})

		result, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)

		row := result.Rows[0]
		assert.Equal(t, "A", row.DistrictID)
		assert.Equal(t, "2023-08", row.Period)
		require.NotNil(t, row.Sensors[domain.SensorMODIS])
		assert.Equal(t, 1, row.Sensors[domain.SensorMODIS].Fire.Count)
		require.NotNil(t, row.Sensors[domain.SensorMOPITT])
		assert.InDelta(t, 140.0, row.Sensors[domain.SensorMOPITT].CO.WeightedMean, 1e-9)

		assert.Equal(t, fixed, result.Manifest.GeneratedAt)
		assert.Equal(t, testRange(), result.Manifest.DateRange)
		require.Len(t, result.Manifest.Sources, 2)

		modis := result.Manifest.Sources[0]
		assert.Equal(t, domain.SensorMODIS, modis.Sensor)
		assert.Equal(t, 2, modis.Records)
		assert.Equal(t, 1, modis.DroppedQuality)
		assert.False(t, modis.Failed())

		assert.Equal(t, 1, result.Summary.Detections[domain.SensorMODIS])
	})

	t.Run("failed source is isolated", func(t *testing.T) {
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: &fakeFetcher{err: errors.New("firms unavailable")}, Policy: domain.QualityPolicy{MinConfidence: 70}},
			{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
		})

		result, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Nil(t, result.Rows[0].Sensors[domain.SensorMODIS])
		assert.NotNil(t, result.Rows[0].Sensors[domain.SensorMOPITT])

		modis := result.Manifest.Sources[0]
		assert.True(t, modis.Failed())
		assert.Contains(t, modis.Failure, "firms unavailable")
	})

	t.Run("schema mismatch fails only that source", func(t *testing.T) {
		missing := []domain.RawRecord{{"latitude": "0.5", "longitude": "0.5", "acq_date": "2023-08-01"}}
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: &fakeFetcher{records: missing}, Policy: domain.QualityPolicy{MinConfidence: 70}},
			{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
		})

		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Manifest.Sources[0].Failed())
		assert.Contains(t, result.Manifest.Sources[0].Failure, "confidence")
	})

	t.Run("empty source fails", func(t *testing.T) {
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: &fakeFetcher{}, Policy: domain.QualityPolicy{MinConfidence: 70}},
			{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
		})

		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "empty input", result.Manifest.Sources[0].Failure)
	})

	t.Run("all sources failed", func(t *testing.T) {
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: &fakeFetcher{err: errors.New("down")}},
			{Sensor: domain.SensorVIIRS, Fetcher: &fakeFetcher{err: errors.New("down")}},
		})

		_, err := p.Run(context.Background())
		var noData *domain.NoDataAggregatedError
		require.ErrorAs(t, err, &noData)
		assert.Equal(t, 2, noData.Sources)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
		})

		_, err := p.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("runs are idempotent", func(t *testing.T) {
		fetcher := &fakeFetcher{records: fireRaws()}
		p := newTestPipeline(t, []Source{
			{Sensor: domain.SensorMODIS, Fetcher: fetcher, Policy: domain.QualityPolicy{MinConfidence: 70}},
		})

		first, err := p.Run(context.Background())
		require.NoError(t, err)
		second, err := p.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first.Rows, second.Rows)
		assert.Equal(t, 2, fetcher.calls)
	})
}

func TestPipelineReadiness(t *testing.T) {
	p := newTestPipeline(t, []Source{
		{Sensor: domain.SensorMOPITT, Fetcher: &fakeFetcher{records: coRaws()}},
	})

	require.Error(t, p.CheckReadiness(context.Background()))
	assert.Nil(t, p.LatestResult())

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Same(t, result, p.LatestResult())
}

func TestPipelineRun_ManifestSourceOrder(t *testing.T) {
	p := newTestPipeline(t, []Source{
		{Sensor: domain.SensorVIIRS, Fetcher: &fakeFetcher{records: fireRaws()}, Policy: domain.QualityPolicy{}},
		{Sensor: domain.SensorAIRS, Fetcher: &fakeFetcher{records: coRaws()}},
	})

	latest, err := p.Run(context.Background())
	require.NoError(t, err)

	// Manifest order follows source configuration order.
	require.Len(t, latest.Manifest.Sources, 2)
	assert.Equal(t, domain.SensorVIIRS, latest.Manifest.Sources[0].Sensor)
	assert.Equal(t, domain.SensorAIRS, latest.Manifest.Sources[1].Sensor)
}
