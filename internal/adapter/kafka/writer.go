// Package kafka publishes enriched rows to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// batchSize bounds the messages handed to one WriteMessages call.
const batchSize = 500

// Writer produces one message per enriched row.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic. runID is attached to every
// message as a header.
func NewWriter(brokers []string, topic, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    batchSize,
	}
	return &Writer{writer: w, runID: runID, logger: logger}
}

// LoadBatch serializes and publishes rows keyed by row_id. Rows with the same
// id always land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.EnrichedRow) error {
	if len(rows) == 0 {
		return nil
	}
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rows[i], w.runID)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish rows %d-%d: %w", rows[start].RowID, rows[end-1].RowID, err)
		}
	}
	w.logger.Info("rows published", "topic", w.writer.Topic, "rows", len(rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EnrichedRow into a Kafka message.
func serializeToMessage(row domain.EnrichedRow, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row %d: %w", row.RowID, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(row.RowID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "latlon", Value: []byte(row.LatLon)},
			{Key: "processed_at", Value: []byte(row.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
