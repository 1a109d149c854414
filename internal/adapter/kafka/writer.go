// Package kafka publishes aggregated micro-region snapshots.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces region snapshot records to a Kafka topic.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes every record of s in a single WriteMessages call. Records
// with the same region, indicator and period share a key so compacted topics
// keep the latest value.
func (w *Writer) Publish(ctx context.Context, s domain.RegionSnapshot) error {
	if len(s.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(s.Records))
	for i := range s.Records {
		msg, err := serializeToMessage(s.Records[i], s.Generation, s.PublishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish region snapshot: %w", err)
	}
	w.logger.Info("region snapshot published", "generation", s.Generation, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey identifies a region observation: region|indicator|year|month.
func MessageKey(r domain.AggregatedRecord) string {
	return r.MicroRegion + "|" + r.IndicatorCode + "|" + r.Year + "|" + r.Month
}

// serializeToMessage marshals an AggregatedRecord into a Kafka message.
func serializeToMessage(r domain.AggregatedRecord, generation uint64, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(r)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "micro_region", Value: []byte(r.MicroRegion)},
			{Key: "generation", Value: []byte(strconv.FormatUint(generation, 10))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
