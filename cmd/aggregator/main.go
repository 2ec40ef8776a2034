package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hazewatch/fire-district-etl/internal/adapter/boundaries"
	"github.com/hazewatch/fire-district-etl/internal/adapter/export"
	"github.com/hazewatch/fire-district-etl/internal/adapter/firms"
	httpadapter "github.com/hazewatch/fire-district-etl/internal/adapter/http"
	kafkaadapter "github.com/hazewatch/fire-district-etl/internal/adapter/kafka"
	"github.com/hazewatch/fire-district-etl/internal/adapter/netcdf"
	"github.com/hazewatch/fire-district-etl/internal/config"
	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/observability"
	"github.com/hazewatch/fire-district-etl/internal/pipeline"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	districts, err := boundaries.Load(cfg.BoundariesPath)
	if err != nil {
		logger.Error("failed to load boundaries", "path", cfg.BoundariesPath, "error", err)
		os.Exit(1)
	}
	index, err := spatial.NewIndex(districts)
	if err != nil {
		logger.Error("failed to index boundaries", "error", err)
		os.Exit(1)
	}
	logger.Info("boundaries indexed", "districts", len(districts))

	sources := buildSources(cfg, logger)

	p := pipeline.New(index, sources, cfg.DateRange(), cfg.Granularity, cfg.Workers, logger, metrics)

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run one aggregation, then keep serving the result until signalled.
	go func() {
		result, err := p.Run(ctx)
		if err != nil {
			logger.Error("aggregation run failed", "error", err)
			stop()
			return
		}
		if writer != nil {
			if err := writer.PublishResult(ctx, result); err != nil {
				logger.Error("kafka publish failed", "error", err)
			}
		}
		if cfg.OutputCSV != "" {
			if err := export.WriteCSV(cfg.OutputCSV, result.Rows); err != nil {
				logger.Error("csv export failed", "path", cfg.OutputCSV, "error", err)
			} else {
				logger.Info("csv written", "path", cfg.OutputCSV, "rows", len(result.Rows))
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildSources wires one pipeline source per configured sensor: fire sensors
// read from FIRMS behind the LRU cache, CO sensors from local NetCDF files.
func buildSources(cfg *config.Config, logger *slog.Logger) []pipeline.Source {
	var (
		fireFetcher pipeline.RawFetcher
		coFetcher   pipeline.RawFetcher
	)

	sources := make([]pipeline.Source, 0, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		var fetcher pipeline.RawFetcher
		if sensor.Kind() == domain.KindFirePoint {
			if fireFetcher == nil {
				client := firms.NewClient(cfg.FIRMSAPIKey, cfg.FIRMSBaseURL, cfg.BBox, cfg.FIRMSTimeout, logger)
				fireFetcher = firms.NewCachedFetcher(client, cfg.FIRMSCacheSize)
			}
			fetcher = fireFetcher
		} else {
			if coFetcher == nil {
				coFetcher = netcdf.NewFetcher(cfg.CODataDir, logger)
			}
			fetcher = coFetcher
		}
		sources = append(sources, pipeline.Source{
			Sensor:  sensor,
			Fetcher: fetcher,
			Policy:  cfg.PolicyFor(sensor),
		})
	}
	return sources
}
