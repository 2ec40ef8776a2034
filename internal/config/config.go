// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StartDate   time.Time
	EndDate     time.Time
	Sensors     []domain.Sensor
	Granularity domain.Granularity
	Workers     int

	BoundariesPath string
	CODataDir      string
	OutputCSV      string

	// Quality gates applied during harmonization.
	MODISMinConfidence float64
	VIIRSMinConfidence float64
	COAcceptMarginal   bool

	// FIRMS API configuration.
	FIRMSAPIKey    string
	FIRMSBaseURL   string
	FIRMSTimeout   time.Duration
	FIRMSCacheSize int

	// Bounding box for FIRMS area queries: west,south,east,north.
	BBox [4]float64

	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	startDate, err := parseDate("START_DATE")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate("END_DATE")
	if err != nil {
		return nil, err
	}
	if endDate.Before(startDate) {
		return nil, errors.New("END_DATE is before START_DATE")
	}

	sensors, err := parseSensors(envOrDefault("SENSORS", "modis,viirs,mopitt,airs"))
	if err != nil {
		return nil, err
	}

	granularity, err := domain.ParseGranularity(envOrDefault("PERIOD", "month"))
	if err != nil {
		return nil, fmt.Errorf("invalid PERIOD: %w", err)
	}

	workers, err := parsePositiveInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}

	modisMin, err := parseConfidence("MODIS_MIN_CONFIDENCE", 70)
	if err != nil {
		return nil, err
	}
	viirsMin, err := parseConfidence("VIIRS_MIN_CONFIDENCE", 60)
	if err != nil {
		return nil, err
	}

	firmsTimeout, err := parseDurationEnv("FIRMS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	firmsCacheSize, err := parsePositiveInt("FIRMS_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	bbox, err := parseBBox(envOrDefault("BBOX", "95,-11,141,6"))
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBoolEnv("KAFKA_ENABLED")
	if err != nil {
		return nil, err
	}
	coAcceptMarginal, err := parseBoolEnv("CO_ACCEPT_MARGINAL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StartDate:   startDate,
		EndDate:     endDate,
		Sensors:     sensors,
		Granularity: granularity,
		Workers:     workers,

		BoundariesPath: envOrDefault("BOUNDARIES_PATH", "data/districts.geojson"),
		CODataDir:      envOrDefault("CO_DATA_DIR", "data/co"),
		OutputCSV:      os.Getenv("OUTPUT_CSV"),

		MODISMinConfidence: modisMin,
		VIIRSMinConfidence: viirsMin,
		COAcceptMarginal:   coAcceptMarginal,

		FIRMSAPIKey:    os.Getenv("FIRMS_API_KEY"),
		FIRMSBaseURL:   envOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov"),
		FIRMSTimeout:   firmsTimeout,
		FIRMSCacheSize: firmsCacheSize,
		BBox:           bbox,

		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "district-fire-stats"),
		KafkaEnabled:   kafkaEnabled,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.BoundariesPath == "" {
		return nil, errors.New("BOUNDARIES_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if needsFIRMS(cfg.Sensors) && cfg.FIRMSAPIKey == "" {
		return nil, errors.New("FIRMS_API_KEY is required for fire sensors")
	}

	return cfg, nil
}

// DateRange returns the configured aggregation window.
func (c *Config) DateRange() domain.DateRange {
	return domain.DateRange{Start: c.StartDate, End: c.EndDate}
}

// PolicyFor returns the quality gate for one sensor.
func (c *Config) PolicyFor(sensor domain.Sensor) domain.QualityPolicy {
	switch sensor {
	case domain.SensorMODIS:
		return domain.QualityPolicy{MinConfidence: c.MODISMinConfidence}
	case domain.SensorVIIRS:
		return domain.QualityPolicy{MinConfidence: c.VIIRSMinConfidence}
	default:
		return domain.QualityPolicy{AcceptMarginal: c.COAcceptMarginal}
	}
}

func needsFIRMS(sensors []domain.Sensor) bool {
	for _, s := range sensors {
		if s.Kind() == domain.KindFirePoint {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseSensors(s string) ([]domain.Sensor, error) {
	var sensors []domain.Sensor
	seen := make(map[domain.Sensor]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sensor, err := domain.ParseSensor(part)
		if err != nil {
			return nil, fmt.Errorf("invalid SENSORS: %w", err)
		}
		if seen[sensor] {
			return nil, fmt.Errorf("invalid SENSORS: %q listed twice", sensor)
		}
		seen[sensor] = true
		sensors = append(sensors, sensor)
	}
	if len(sensors) == 0 {
		return nil, errors.New("SENSORS is required")
	}
	return sensors, nil
}

func parseDate(key string) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t.UTC(), nil
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseBoolEnv accepts the strconv.ParseBool spellings (1/t/true, any
// case) so a typo fails loudly instead of silently reading as false.
func parseBoolEnv(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseConfidence(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 100 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBBox(s string) ([4]float64, error) {
	var bbox [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox, errors.New("invalid BBOX: want west,south,east,north")
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bbox, fmt.Errorf("invalid BBOX: %w", err)
		}
		bbox[i] = f
	}
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return bbox, errors.New("invalid BBOX: empty extent")
	}
	return bbox, nil
}
