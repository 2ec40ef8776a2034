//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/hazewatch/fire-district-etl/internal/adapter/kafka"
	"github.com/hazewatch/fire-district-etl/internal/aggregate"
	"github.com/hazewatch/fire-district-etl/internal/config"
	"github.com/hazewatch/fire-district-etl/internal/domain"
	"github.com/hazewatch/fire-district-etl/internal/observability"
	"github.com/hazewatch/fire-district-etl/internal/pipeline"
	"github.com/hazewatch/fire-district-etl/internal/spatial"
)

const testSinkTopic = "test-district-stats"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("fire-etl-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial kafka")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type staticFetcher struct {
	records []domain.RawRecord
}

func (f *staticFetcher) FetchRaw(_ context.Context, _ domain.Sensor, _ domain.DateRange) ([]domain.RawRecord, error) {
	return f.records, nil
}

func testDistricts() []domain.District {
	return []domain.District{{
		ID:   "IDN.14.3_1",
		Name: "Kotawaringin Barat",
		Geometry: orb.MultiPolygon{{
			{{111, -3}, {112, -3}, {112, -2}, {111, -2}, {111, -3}},
		}},
		AreaKm2: 10759,
	}}
}

// TestPublishRunToKafka runs the aggregation pipeline against in-memory
// sources, publishes the result through the real Kafka adapter, and reads it
// back from the sink topic.
func TestPublishRunToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	index, err := spatial.NewIndex(testDistricts())
	require.NoError(t, err)

	sources := []pipeline.Source{
		{
			Sensor: domain.SensorMODIS,
			Fetcher: &staticFetcher{records: []domain.RawRecord{
				{"latitude": "-2.5", "longitude": "111.5", "acq_date": "2023-08-01", "acq_time": "0412", "confidence": "85", "frp": "12.5", "daynight": "D"},
				{"latitude": "-2.4", "longitude": "111.6", "acq_date": "2023-08-02", "acq_time": "1342", "confidence": "91", "frp": "30.0", "daynight": "D"},
			}},
			Policy: domain.QualityPolicy{MinConfidence: 70},
		},
		{
			Sensor: domain.SensorMOPITT,
			Fetcher: &staticFetcher{records: []domain.RawRecord{
				{"lat": "-2.5", "lon": "111.5", "date": "2023-08-01", "co_ppbv": "140", "quality": "0"},
			}},
		},
	}

	dr := domain.DateRange{
		Start: time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 8, 14, 0, 0, 0, 0, time.UTC),
	}
	p := pipeline.New(index, sources, dr, domain.GranularityMonth, 2, discardLogger(), observability.NewMetricsForTesting())

	result, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.PublishResult(ctx, result))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	assert.Equal(t, "IDN.14.3_1|2023-08", string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "2023-08", headers["period"])
	_, err = time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	var row aggregate.CombinedRow
	require.NoError(t, json.Unmarshal(msg.Value, &row))
	assert.Equal(t, "Kotawaringin Barat", row.DistrictName)
	require.NotNil(t, row.Sensors[domain.SensorMODIS])
	assert.Equal(t, 2, row.Sensors[domain.SensorMODIS].Fire.Count)
	assert.Equal(t, 42.5, row.Sensors[domain.SensorMODIS].Fire.FRPSum)
	require.NotNil(t, row.Sensors[domain.SensorMOPITT])
	assert.InDelta(t, 140.0, row.Sensors[domain.SensorMOPITT].CO.WeightedMean, 1e-9)
}
