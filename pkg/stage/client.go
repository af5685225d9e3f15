package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
)

// ResultHandler receives a stage's asynchronous reply. Replies are
// correlated to orders purely through the order identifier carried inside
// the trade, never through the channel, so multiple orders may be in
// flight to the same stage concurrently.
type ResultHandler func(trade *core.Trade)

// Client is the orchestrator-side handle to one stage. It is constructed
// once per stage per process: the private reply channel is minted and
// subscribed at construction and lives for the lifetime of the client.
type Client struct {
	name         string
	inbound      string
	replyChannel string
	bus          bus.Bus
	logger       zerolog.Logger

	mu      sync.RWMutex
	handler ResultHandler

	sub bus.Subscription
}

// NewClient creates the stage client and opens its private reply channel.
// The subscription is confirmed before NewClient returns, so a Send issued
// immediately afterwards cannot lose its reply.
func NewClient(ctx context.Context, name string, b bus.Bus) (*Client, error) {
	c := &Client{
		name:         name,
		inbound:      bus.Inbound(name),
		replyChannel: bus.ReplyChannel(name),
		bus:          b,
		logger:       log.With().Str("stage_client", name).Logger(),
	}

	sub, err := b.Subscribe(ctx, c.replyChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe stage client %s: %w", name, err)
	}
	c.sub = sub
	go c.dispatch()

	c.logger.Info().Str("reply_channel", c.replyChannel).Msg("Stage client listening")
	return c, nil
}

// OnResult registers the handler invoked for every reply, including FAILED
// trades. It must be set before the first Send.
func (c *Client) OnResult(h ResultHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Send dispatches the trade to the stage's inbound channel and returns
// immediately; the reply arrives asynchronously through the handler.
func (c *Client) Send(ctx context.Context, trade *core.Trade) error {
	payload, err := bus.TradePayload(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade for %s: %w", c.name, err)
	}
	env := &bus.Envelope{Type: bus.TypeSend, ReturnChannel: c.replyChannel, Payload: payload}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope for %s: %w", c.name, err)
	}

	c.logger.Debug().Str("order_id", trade.OrderID).Msg("Dispatching trade to stage")
	return c.bus.Publish(ctx, c.inbound, data)
}

func (c *Client) dispatch() {
	for msg := range c.sub.Messages() {
		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil {
			c.logger.Error().Err(err).Msg("Discarding undecodable reply")
			continue
		}
		if env.Type != bus.TypeOnReceive {
			c.logger.Debug().Str("type", string(env.Type)).Msg("Discarding unexpected envelope on reply channel")
			continue
		}
		trade, err := env.Payload.Trade()
		if err != nil {
			c.logger.Error().Err(err).Msg("Discarding reply with malformed trade payload")
			continue
		}

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(trade)
		}
	}
}

// Close releases the reply-channel subscription.
func (c *Client) Close() error {
	return c.sub.Close()
}
