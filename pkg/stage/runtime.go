package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
)

// defaultQueueSize bounds the internal work queue. The queue is practically
// unbounded for the traffic a single stage instance sees; the listener
// blocks rather than drop once it fills.
const defaultQueueSize = 1024

// Transform is a stage's pure business function. Business-rule failures are
// reported in-band by returning a trade with status FAILED; a Transform
// never returns an error.
type Transform func(core.Trade) core.Trade

// Runtime turns a pure Transform into a long-running pipeline stage
// service. It consumes SEND envelopes from the stage's inbound channel,
// applies the transform one trade at a time in strict FIFO order, and
// publishes the ON_RECEIVE reply to the caller-specified return channel.
type Runtime struct {
	name      string
	inbound   string
	transform Transform
	bus       bus.Bus
	logger    zerolog.Logger

	queue  chan *bus.Envelope
	sub    bus.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRuntime creates a stage runtime for the named service. The name is
// the channel prefix; validation, execution, clearing and settlement each
// run their own runtime.
func NewRuntime(name string, transform Transform, b bus.Bus) *Runtime {
	return &Runtime{
		name:      name,
		inbound:   bus.Inbound(name),
		transform: transform,
		bus:       b,
		logger:    log.With().Str("stage", name).Logger(),
	}
}

// Start subscribes to the inbound channel and begins the listener and the
// single-consumer processing loop.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := r.bus.Subscribe(ctx, r.inbound)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe stage %s: %w", r.name, err)
	}

	r.cancel = cancel
	r.sub = sub
	r.queue = make(chan *bus.Envelope, defaultQueueSize)
	r.done = make(chan struct{})

	go r.listen(ctx)
	go r.work(ctx)

	r.logger.Info().Str("channel", r.inbound).Msg("Stage runtime started")
	return nil
}

// listen decouples the subscription from the processing loop: it parses
// and enqueues envelopes without doing any business work.
func (r *Runtime) listen(ctx context.Context) {
	defer close(r.queue)
	for msg := range r.sub.Messages() {
		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil {
			// Serialization fault: fatal for this message only.
			r.logger.Error().Err(err).Msg("Discarding undecodable message")
			continue
		}
		if env.Type != bus.TypeSend {
			r.logger.Debug().Str("type", string(env.Type)).Msg("Discarding non-SEND envelope")
			continue
		}
		select {
		case r.queue <- env:
		case <-ctx.Done():
			return
		}
	}
}

// work is the strict-FIFO single consumer: at most one trade is being
// transformed at a time per stage instance.
func (r *Runtime) work(ctx context.Context) {
	defer close(r.done)
	for env := range r.queue {
		r.process(ctx, env)
	}
}

func (r *Runtime) process(ctx context.Context, env *bus.Envelope) {
	trade, err := env.Payload.Trade()
	if err != nil {
		r.logger.Error().Err(err).Msg("Discarding envelope with malformed trade payload")
		return
	}
	if env.ReturnChannel == "" {
		r.logger.Warn().Err(bus.ErrNoReturnChannel).Str("order_id", trade.OrderID).Msg("Dropping request")
		return
	}

	processed := r.transform(*trade)

	payload, err := bus.TradePayload(&processed)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", trade.OrderID).Msg("Failed to marshal processed trade")
		return
	}
	reply := &bus.Envelope{Type: bus.TypeOnReceive, Payload: payload}
	data, err := reply.Encode()
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", trade.OrderID).Msg("Failed to encode reply envelope")
		return
	}

	r.logger.Info().
		Str("order_id", processed.OrderID).
		Str("status", string(processed.Status)).
		Msg("Processed trade")

	if err := r.bus.Publish(ctx, env.ReturnChannel, data); err != nil {
		r.logger.Error().Err(err).Str("order_id", trade.OrderID).Msg("Failed to publish reply")
	}
}

// Stop unsubscribes and waits for the in-flight work to finish. The wait
// is bounded by the caller's context; on expiry the worker is abandoned.
func (r *Runtime) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	if err := r.sub.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("Error closing stage subscription")
	}
	select {
	case <-r.done:
		r.logger.Info().Msg("Stage runtime stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn().Msg("Stage runtime shutdown timed out")
		return ctx.Err()
	}
}
