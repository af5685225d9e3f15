package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSender implements Sender using Kafka
type KafkaSender struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaSender creates a new Kafka trade-feed sender
func NewKafkaSender(brokerAddr, topic string) (*KafkaSender, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerAddr),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaSender{
		writer: writer,
		topic:  topic,
	}, nil
}

// SendTradeMessage publishes a terminal trade outcome to Kafka
func (k *KafkaSender) SendTradeMessage(ctx context.Context, msg *TradeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal trade message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(msg.OrderID),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

var _ Sender = (*KafkaSender)(nil)
