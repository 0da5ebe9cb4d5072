package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type kafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier publishes events keyed by user id, so one user's events
// stay ordered on a single partition.
func NewKafkaNotifier(topic string, brokers ...string) Notifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &kafkaNotifier{writer: w}
}

func (n *kafkaNotifier) Notify(ctx context.Context, event Event) error {
	msg, err := toKafkaMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}

func toKafkaMessage(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Name)},
		},
	}, nil
}
