package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hazewatch/fire-district-etl/internal/aggregate"
	"github.com/hazewatch/fire-district-etl/internal/config"
)

// Writer publishes merged district rows to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResult serializes every row of a completed run and publishes them
// in a single WriteMessages call.
func (w *Writer) PublishResult(ctx context.Context, result *aggregate.CombinedResult) error {
	if len(result.Rows) == 0 {
		return nil
	}
	generatedAt := result.Manifest.GeneratedAt
	msgs := make([]kafkago.Message, len(result.Rows))
	for i := range result.Rows {
		msg, err := serializeToMessage(result.Rows[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	w.logger.Info("published run to kafka", "rows", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a merged row into a Kafka message keyed by
// district and period, so a compacted topic keeps the latest run's row.
func serializeToMessage(row aggregate.CombinedRow, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize district row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.DistrictID + "|" + row.Period),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "period", Value: []byte(row.Period)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
