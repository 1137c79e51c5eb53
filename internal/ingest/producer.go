package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer emits telemetry messages for asynchronous intake. Callers use it
// best-effort on the hot path: log and ignore errors.
type Producer interface {
	// Emit sends a single message. Implementations may block briefly.
	Emit(ctx context.Context, msg *Message) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes telemetry messages to
// the given topic. Returns nil when brokers or topic are unset, which callers
// treat as "Kafka disabled". Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the message as JSON and writes it to the Kafka topic, keyed
// by device so one device's samples stay ordered within a partition.
// Uses the request context with a short timeout so slow Kafka does not block callers indefinitely.
func (p *KafkaProducer) Emit(ctx context.Context, msg *Message) error {
	if p == nil || p.writer == nil || msg == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(msg.Sample.DeviceID),
		Value: payload,
	})
	if err != nil {
		log.Printf("ingest: kafka emit failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
