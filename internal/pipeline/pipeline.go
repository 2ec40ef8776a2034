// Package pipeline orchestrates one aggregation run: boundaries are
// indexed once, each configured source is fetched, harmonized, and
// aggregated on a bounded worker pool, and the surviving per-sensor tables
// are merged into the combined result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hazewatch/fire-district-etl/internal/aggregate"
	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/observability"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

// RawFetcher supplies a source's raw records for a date range. Adapters
// (FIRMS HTTP client, NetCDF scanner) implement it; tests use fakes.
type RawFetcher interface {
	FetchRaw(ctx context.Context, sensor domain.Sensor, dr domain.DateRange) ([]domain.RawRecord, error)
}

// Source is one configured sensor feed: where its raw records come from
// and the quality gate they must pass.
type Source struct {
	Sensor  domain.Sensor
	Fetcher RawFetcher
	Policy  domain.QualityPolicy
}

// Pipeline runs the harmonize-aggregate-merge sequence over a fixed set of
// sources. Sources are independent: each task touches only its own records
// and the shared read-only index, and its accumulation is merged only after
// the task completes, so no locking is needed beyond collecting results.
type Pipeline struct {
	index       spatial.Index
	sources     []Source
	dateRange   domain.DateRange
	granularity domain.Granularity
	workers     int

	logger  *slog.Logger
	metrics *observability.Metrics

	ready atomic.Bool
	last  atomic.Pointer[aggregate.CombinedResult]
}

// New creates a Pipeline. workers bounds how many sources aggregate
// concurrently; values below 1 are treated as 1.
func New(index spatial.Index, sources []Source, dr domain.DateRange, g domain.Granularity, workers int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		index:       index,
		sources:     sources,
		dateRange:   dr,
		granularity: g,
		workers:     workers,
		logger:      logger,
		metrics:     metrics,
	}
}

var errNotReady = errors.New("no completed aggregation run yet")

type sourceResult struct {
	report aggregate.SourceReport
	table  []aggregate.DistrictPeriodStat
}

// Run executes one aggregation run. A single source's failure (schema
// mismatch, fetch error, empty input) is recorded in the manifest and
// excluded from the merge without disturbing sibling sources; only
// "every source failed" or cancellation fails the run.
func (p *Pipeline) Run(ctx context.Context) (*aggregate.CombinedResult, error) {
	start := clock.Now()
	p.logger.Info("aggregation run started",
		"sources", len(p.sources),
		"start", p.dateRange.Start.Format("2006-01-02"),
		"end", p.dateRange.End.Format("2006-01-02"),
		"granularity", p.granularity,
	)
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)

	results := make([]sourceResult, len(p.sources))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(p.workers)
	for i, src := range p.sources {
		// Cooperative cancellation: stop handing out work once the run
		// context is cancelled; in-flight sources finish on their own.
		if ctx.Err() != nil {
			break
		}
		grp.Go(func() error {
			results[i] = p.runSource(grpCtx, src)
			return nil
		})
	}
	grp.Wait() //nolint:errcheck // source tasks never return errors
	if err := ctx.Err(); err != nil {
		p.metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	tables := make(map[domain.Sensor][]aggregate.DistrictPeriodStat)
	reports := make([]aggregate.SourceReport, 0, len(p.sources))
	failures := 0
	for _, res := range results {
		reports = append(reports, res.report)
		if res.report.Failed() {
			failures++
			continue
		}
		tables[res.report.Sensor] = res.table
	}

	if failures == len(p.sources) {
		p.metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, &domain.NoDataAggregatedError{Sources: len(p.sources)}
	}

	rows, err := aggregate.MergeTables(tables)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	result := &aggregate.CombinedResult{
		Rows:    rows,
		Summary: aggregate.Summarize(rows),
		Manifest: aggregate.Manifest{
			GeneratedAt: clock.Now(),
			DateRange:   p.dateRange,
			Granularity: p.granularity,
			Sources:     reports,
		},
	}

	outcome := "ok"
	if failures > 0 {
		outcome = "partial"
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(clock.Since(start).Seconds())
	p.ready.Store(true)
	p.last.Store(result)

	p.logger.Info("aggregation run finished",
		"rows", len(rows),
		"failed_sources", failures,
		"duration", clock.Since(start),
	)
	return result, nil
}

// runSource executes one source's fetch → harmonize → aggregate task. All
// failure modes end up in the report, never as a returned error, so one
// bad source cannot take down the run.
func (p *Pipeline) runSource(ctx context.Context, src Source) sourceResult {
	start := clock.Now()
	counters := &domain.RunCounters{}
	res := sourceResult{report: aggregate.SourceReport{Sensor: src.Sensor}}

	fail := func(msg string) sourceResult {
		p.logger.Warn("source failed", "sensor", src.Sensor, "reason", msg)
		p.metrics.SourceFailures.WithLabelValues(string(src.Sensor)).Inc()
		res.report.Failure = msg
		p.fillReport(&res.report, counters)
		return res
	}

	raws, err := src.Fetcher.FetchRaw(ctx, src.Sensor, p.dateRange)
	if err != nil {
		return fail("fetch: " + err.Error())
	}
	if len(raws) == 0 {
		return fail("empty input")
	}

	records, err := domain.Normalize(src.Sensor, raws, src.Policy, counters)
	if err != nil {
		return fail(err.Error())
	}

	period := p.granularity.PeriodFunc()
	if src.Sensor.Kind() == domain.KindFirePoint {
		res.table = aggregate.AggregatePoints(records, p.index, period, counters)
	} else {
		res.table = aggregate.AggregateGrid(records, p.index, period, counters)
	}

	p.fillReport(&res.report, counters)
	p.metrics.RecordsHarmonized.WithLabelValues(string(src.Sensor)).Add(float64(len(records)))
	p.metrics.SourceDuration.WithLabelValues(string(src.Sensor)).Observe(clock.Since(start).Seconds())

	p.logger.Info("source aggregated",
		"sensor", src.Sensor,
		"records", counters.Input,
		"dropped_quality", counters.DroppedQuality,
		"malformed", counters.Malformed,
		"unassigned", counters.Unassigned,
		"rows", len(res.table),
	)
	return res
}

func (p *Pipeline) fillReport(report *aggregate.SourceReport, counters *domain.RunCounters) {
	report.Records = counters.Input
	report.DroppedQuality = counters.DroppedQuality
	report.Malformed = counters.Malformed
	report.Unassigned = counters.Unassigned

	sensor := string(report.Sensor)
	p.metrics.RecordsDropped.WithLabelValues(sensor, "quality").Add(float64(counters.DroppedQuality))
	p.metrics.RecordsDropped.WithLabelValues(sensor, "malformed").Add(float64(counters.Malformed))
	p.metrics.RecordsUnassigned.WithLabelValues(sensor).Add(float64(counters.Unassigned))
}

// CheckReadiness returns nil once at least one run has completed, so the
// readiness probe flips only after the service has produced a result.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errNotReady
	}
	return nil
}

// LatestResult returns the most recent completed run, or nil before the
// first success.
func (p *Pipeline) LatestResult() *aggregate.CombinedResult {
	return p.last.Load()
}
