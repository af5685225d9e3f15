package bus

import "context"

// Message is one delivery from the bus.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live channel subscription. Messages published while a
// subscription is active arrive on Messages(); the channel is closed when
// the subscription ends.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is the publish/subscribe substrate the pipeline runs on. It offers
// no delivery acknowledgment and no persistence: a published message is
// delivered to current subscribers or dropped if none exist.
//
// This interface decouples the protocol layer from the Redis client the
// same way the message-sender interface decouples the feed from Kafka.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}
