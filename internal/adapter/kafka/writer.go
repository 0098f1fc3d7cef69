package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/water-globe-etl/internal/config"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes the entities of each load to a Kafka topic, one message per entity.
// It implements pipeline.EntityPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured entity topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEntityTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishEntities serializes every entity of a load and writes them in a
// single WriteMessages call. Failed writes are retried with backoff.
func (w *Writer) PublishEntities(ctx context.Context, info domain.LoadInfo, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(entities))
	for i := range entities {
		msg, err := serializeToMessage(info, entities[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = w.writer.WriteMessages(ctx, msgs...); err == nil {
			return nil
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		w.logger.Warn("write entities failed, retrying",
			"error", err, "attempt", attempt, "backoff", backoff, "load_id", info.ID)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("write entities: %w", err)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// entityMessage is the JSON value of a published entity.
type entityMessage struct {
	LoadID   string        `json:"load_id"`
	LoadedAt time.Time     `json:"loaded_at"`
	Entity   domain.Entity `json:"entity"`
}

// serializeToMessage marshals an entity into a Kafka message keyed by entity ID.
func serializeToMessage(info domain.LoadInfo, entity domain.Entity) (kafkago.Message, error) {
	data, err := json.Marshal(entityMessage{LoadID: info.ID, LoadedAt: info.LoadedAt, Entity: entity})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize entity %q: %w", entity.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(entity.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "series_name", Value: []byte(entity.SeriesName)},
			{Key: "load_id", Value: []byte(info.ID)},
			{Key: "loaded_at", Value: []byte(info.LoadedAt.Format(time.RFC3339))},
		},
	}, nil
}
