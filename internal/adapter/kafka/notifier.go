package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/config"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier publishes archived-waveform records to a Kafka topic.
// It implements acquire.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes one message per archived file in a single WriteMessages call.
// Messages are keyed by event ID so one event's files stay in one partition.
func (n *Notifier) Notify(ctx context.Context, files []domain.ArchivedFile) error {
	if len(files) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(files))
	for i := range files {
		msg, err := serializeToMessage(files[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d archive records: %w", len(msgs), err)
	}
	n.logger.Debug("archive records published", "count", len(msgs), "topic", n.writer.Topic)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals an ArchivedFile into a Kafka message.
func serializeToMessage(file domain.ArchivedFile) (kafkago.Message, error) {
	data, err := json.Marshal(file)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize archived file: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(file.EventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "nslc", Value: []byte(file.NSLC.Key())},
			{Key: "provider", Value: []byte(file.Provider)},
			{Key: "archived_at", Value: []byte(file.ArchivedAt.Format(time.RFC3339))},
		},
	}, nil
}
