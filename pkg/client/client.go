// Package client provides a blocking call/return interface to the trade
// service for callers that cannot consume asynchronous callbacks, layered
// on the same envelope protocol as the rest of the pipeline.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
)

// DefaultTimeout bounds every call. The bus gives no delivery guarantee,
// so an unanswered request must surface as an error instead of wedging the
// caller.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when no correlated reply arrives in time.
var ErrTimeout = errors.New("request timed out")

// Client is a synchronous request client. Each call opens its own private
// reply channel, so a reply that straggles in after a timeout lands on a
// dead channel instead of leaking into a later call. An instance supports
// one outstanding call at a time; concurrent calls are serialized.
type Client struct {
	channelName string
	inbound     string
	bus         bus.Bus
	timeout     time.Duration
	logger      zerolog.Logger

	// callMu serializes calls so an instance never has two requests on
	// the wire at once.
	callMu sync.Mutex
}

// New creates a synchronous client for the trade service listening on the
// given channel prefix. A non-positive timeout falls back to
// DefaultTimeout.
func New(_ context.Context, channelName string, b bus.Bus, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		channelName: channelName,
		inbound:     bus.Inbound(channelName),
		bus:         b,
		timeout:     timeout,
		logger:      log.With().Str("component", "sync_client").Logger(),
	}, nil
}

// SubmitOrder submits the order and blocks until the generated order id
// arrives or the timeout elapses.
func (c *Client) SubmitOrder(ctx context.Context, order core.Order) (string, error) {
	payload, err := bus.OrderPayload(order)
	if err != nil {
		return "", err
	}
	reply, err := c.call(ctx, bus.TypeOrderSubmit, payload)
	if err != nil {
		return "", err
	}
	return reply.Payload.OrderID()
}

// GetOrderStatus blocks until the current status of the order arrives or
// the timeout elapses.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (core.OrderStatus, error) {
	reply, err := c.call(ctx, bus.TypeOrderStatus, bus.OrderIDPayload(orderID))
	if err != nil {
		return core.StatusUnknown, err
	}
	return reply.Payload.Status()
}

// call mints a fresh reply channel, subscribes it, publishes the request
// and parks the caller until the correlated reply is delivered, the
// timeout fires, or the context is canceled. The subscription dies with
// the call, so stale replies cannot cross into a later call.
func (c *Client) call(ctx context.Context, msgType bus.MessageType, payload bus.Payload) (*bus.Envelope, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	replyChannel := bus.ReplyChannel(c.channelName)
	sub, err := c.bus.Subscribe(ctx, replyChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe reply channel: %w", err)
	}
	defer sub.Close()

	env := &bus.Envelope{Type: msgType, ReturnChannel: replyChannel, Payload: payload}
	data, err := env.Encode()
	if err != nil {
		return nil, err
	}
	if err := c.bus.Publish(ctx, c.inbound, data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil, ErrTimeout
			}
			reply, err := bus.DecodeEnvelope(msg.Payload)
			if err != nil {
				c.logger.Error().Err(err).Msg("Discarding undecodable reply")
				continue
			}
			if reply.Type != msgType {
				c.logger.Debug().Str("type", string(reply.Type)).Msg("Discarding unexpected reply type")
				continue
			}
			return reply, nil
		case <-timer.C:
			c.logger.Warn().Str("type", string(msgType)).Dur("timeout", c.timeout).Msg("Call timed out")
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close releases nothing today; per-call subscriptions are cleaned up by
// each call. It is kept so callers can treat the client like any other
// connection-holding handle.
func (c *Client) Close() error {
	return nil
}
