package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes records to a topic keyed by record id, so resends land on
// the same partition and can be compacted by the consumer.
type Kafka struct {
	writer messageWriter
}

func NewKafka(brokers []string, topic string, timeout time.Duration) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: timeout,
			BatchSize:    1,
		},
	}
}

func (k *Kafka) Deliver(ctx context.Context, r *models.Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.ID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "report-kind", Value: []byte(r.Kind)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("error publishing record %s: %w", r.ID, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
