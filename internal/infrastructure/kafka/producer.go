package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// kinded is implemented by events that carry a kind tag. The tag is
// copied into a message header so consumers can route on it without
// unmarshalling the payload.
type kinded interface {
	EventKind() string
}

// Producer publishes ledger events (movements, alert changes) to one
// topic. Messages are keyed by product id and partitioned by key hash,
// which is what keeps per-product ordering across partitions.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	msg, err := newMessage(key, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func newMessage(key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if k, ok := event.(kinded); ok {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "kind", Value: []byte(k.EventKind())})
	}
	return msg, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
