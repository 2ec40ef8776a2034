// Package firms fetches active-fire detections from the NASA FIRMS
// area CSV API and exposes them as raw records for harmonization.
package firms

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazewatch/fire-district-etl/internal/domain"
)

// products maps fire sensors to FIRMS standard-processing product names.
var products = map[domain.Sensor]string{
	domain.SensorMODIS: "MODIS_SP",
	domain.SensorVIIRS: "VIIRS_SNPP_SP",
}

// Client implements pipeline.RawFetcher against the FIRMS area API.
type Client struct {
	apiKey     string
	baseURL    string
	bbox       [4]float64 // west, south, east, north
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a FIRMS client for one area of interest.
func NewClient(apiKey, baseURL string, bbox [4]float64, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		bbox:    bbox,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchRaw downloads detections for the date range. The area API caps one
// request at ten days, so longer ranges are fetched in ten-day windows and
// concatenated.
func (c *Client) FetchRaw(ctx context.Context, sensor domain.Sensor, dr domain.DateRange) ([]domain.RawRecord, error) {
	product, ok := products[sensor]
	if !ok {
		return nil, fmt.Errorf("no FIRMS product for sensor %q", sensor)
	}

	var records []domain.RawRecord
	for start := dr.Start; !start.After(dr.End); start = start.AddDate(0, 0, 10) {
		days := int(dr.End.Sub(start).Hours()/24) + 1
		if days > 10 {
			days = 10
		}

		u := fmt.Sprintf("%s/api/area/csv/%s/%s/%.4f,%.4f,%.4f,%.4f/%d/%s",
			c.baseURL, c.apiKey, product,
			c.bbox[0], c.bbox[1], c.bbox[2], c.bbox[3],
			days, start.Format("2006-01-02"))

		window, err := c.fetchWindow(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("fetch %s window %s: %w", product, start.Format("2006-01-02"), err)
		}
		records = append(records, window...)
	}

	c.logger.Debug("FIRMS fetch complete", "sensor", sensor, "records", len(records))
	return records, nil
}

func (c *Client) fetchWindow(ctx context.Context, fullURL string) ([]domain.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("firms API error: status %d: %s", resp.StatusCode, body)
	}

	return parseCSV(resp.Body)
}

// parseCSV reads a FIRMS CSV response into header-keyed records. The API
// returns header-only bodies when no detections exist in the window.
func parseCSV(r io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records []domain.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec := make(domain.RawRecord, len(header))
		for i, field := range header {
			if i < len(row) {
				rec[field] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
