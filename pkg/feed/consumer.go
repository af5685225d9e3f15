package feed

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Consumer reads trade-feed messages back from Kafka. The server uses it
// during development to pretty-print the feed; it is not part of the
// pipeline itself.
type Consumer struct {
	consumer  sarama.Consumer
	partition sarama.PartitionConsumer
	closing   chan struct{}
}

// NewConsumer attaches to the head of the feed topic.
func NewConsumer(brokerAddr, topic string) (*Consumer, error) {
	consumer, err := sarama.NewConsumer([]string{brokerAddr}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	partition, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("failed to consume partition: %w", err)
	}

	return &Consumer{
		consumer:  consumer,
		partition: partition,
		closing:   make(chan struct{}),
	}, nil
}

// ConsumeTradeMessages invokes handler for each feed message until Close
// is called. Malformed messages are skipped.
func (c *Consumer) ConsumeTradeMessages(handler func(msg *TradeMessage) error) error {
	for {
		select {
		case kafkaMsg, ok := <-c.partition.Messages():
			if !ok {
				return nil
			}
			var msg TradeMessage
			if err := json.Unmarshal(kafkaMsg.Value, &msg); err != nil {
				continue
			}
			if err := handler(&msg); err != nil {
				return err
			}
		case <-c.closing:
			return nil
		}
	}
}

// Close stops consumption and releases the Kafka connections.
func (c *Consumer) Close() error {
	close(c.closing)
	if err := c.partition.Close(); err != nil {
		_ = c.consumer.Close()
		return err
	}
	return c.consumer.Close()
}
