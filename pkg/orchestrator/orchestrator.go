package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/feed"
	pkgotel "github.com/finvera/tradeflow/pkg/otel"
	"github.com/finvera/tradeflow/pkg/stage"
)

// TradeService owns the authoritative state of every in-flight order and
// drives each one through the stage sequence. It answers ORDER_SUBMIT and
// ORDER_STATUS requests on its own inbound channel and reacts to stage
// replies delivered through the per-stage clients.
type TradeService struct {
	channelName string
	inbound     string
	bus         bus.Bus
	store       *TradeStore
	feed        feed.Sender // optional terminal-outcome feed
	logger      zerolog.Logger
	metrics     *pkgotel.PipelineMetrics

	clients map[core.Stage]*stage.Client
	sub     bus.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	// inflight tracks dispatch times per order for stage latency. The
	// pipeline is strictly sequential per order, so one slot suffices.
	inflight sync.Map
}

// NewTradeService creates the orchestrator. channelName is the prefix of
// its own inbound channel; sender may be nil to disable the feed.
func NewTradeService(channelName string, b bus.Bus, store *TradeStore, sender feed.Sender) *TradeService {
	return &TradeService{
		channelName: channelName,
		inbound:     bus.Inbound(channelName),
		bus:         b,
		store:       store,
		feed:        sender,
		logger:      log.With().Str("component", "trade_service").Logger(),
		metrics:     pkgotel.GetPipelineMetrics(),
		clients:     make(map[core.Stage]*stage.Client),
	}
}

// Start opens the stage clients and the orchestrator's inbound listener.
func (s *TradeService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	type wiring struct {
		st    core.Stage
		want  core.OrderStatus
		next  core.Stage
		merge func(dst, src *core.Trade)
	}
	wirings := []wiring{
		{core.StageValidation, core.StatusValidated, core.StageExecution,
			func(dst, src *core.Trade) { dst.ValidationMessage = src.ValidationMessage }},
		{core.StageExecution, core.StatusExecuted, core.StageClearing,
			func(dst, src *core.Trade) {
				dst.ExecutedPrice = src.ExecutedPrice
				dst.ExecutedTimestamp = src.ExecutedTimestamp
			}},
		{core.StageClearing, core.StatusCleared, core.StageSettlement,
			func(dst, src *core.Trade) {
				dst.NettedAmount = src.NettedAmount
				dst.ClearingMessage = src.ClearingMessage
			}},
		{core.StageSettlement, core.StatusSettled, "",
			func(dst, src *core.Trade) { dst.SettlementMessage = src.SettlementMessage }},
	}

	for _, w := range wirings {
		client, err := stage.NewClient(s.ctx, string(w.st), s.bus)
		if err != nil {
			s.closeClients()
			return fmt.Errorf("failed to create %s client: %w", w.st, err)
		}
		client.OnResult(s.stageHandler(w.st, w.want, w.next, w.merge))
		s.clients[w.st] = client
	}

	sub, err := s.bus.Subscribe(s.ctx, s.inbound)
	if err != nil {
		s.closeClients()
		return fmt.Errorf("failed to subscribe orchestrator: %w", err)
	}
	s.sub = sub
	go s.listen()

	s.logger.Info().Str("channel", s.inbound).Msg("TradeService listening")
	return nil
}

// SubmitOrder accepts a new order, creates its lifecycle record and
// dispatches it to the validation stage. It returns the generated order id
// immediately; the pipeline advances asynchronously.
func (s *TradeService) SubmitOrder(ctx context.Context, order core.Order) string {
	orderID := uuid.NewString()
	trade := core.NewTrade(orderID, order)

	ctx, span := pkgotel.GetPipelineTracer().Start(ctx, "trade.submit",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if err := s.store.Insert(trade); err != nil {
		// UUIDs do not collide in practice; log and carry on.
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to store new trade")
		return orderID
	}
	s.metrics.RecordOrderSubmitted(ctx)

	s.markDispatch(orderID)
	if err := s.clients[core.StageValidation].Send(ctx, trade); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to dispatch to validation")
	}

	s.logger.Info().Str("order_id", orderID).Msg("Order submitted")
	return orderID
}

// GetOrderStatus is a pure lookup; it returns StatusUnknown for an absent
// order id, never an error.
func (s *TradeService) GetOrderStatus(orderID string) core.OrderStatus {
	trade, ok := s.store.Get(orderID)
	if !ok {
		return core.StatusUnknown
	}
	s.logger.Debug().Str("order_id", orderID).Str("status", string(trade.Status)).Msg("Status lookup")
	return trade.Status
}

// GetTrade returns a copy of the authoritative trade record.
func (s *TradeService) GetTrade(orderID string) (core.Trade, bool) {
	return s.store.Get(orderID)
}

// stageHandler builds the result handler for one stage: merge the
// stage-authoritative fields on success and dispatch the next stage, or
// record the failure terminally. Replayed replies are ignored because the
// status transition no longer applies.
func (s *TradeService) stageHandler(st core.Stage, want core.OrderStatus, next core.Stage, merge func(dst, src *core.Trade)) stage.ResultHandler {
	return func(reply *core.Trade) {
		s.observeLatency(st, reply.OrderID)

		switch reply.Status {
		case want:
			applied := false
			err := s.store.Update(reply.OrderID, func(t *core.Trade) {
				if !t.Status.CanTransitionTo(want) {
					return
				}
				merge(t, reply)
				t.Status = want
				applied = true
			})
			if err != nil {
				s.logger.Error().Err(err).Str("order_id", reply.OrderID).
					Str("stage", string(st)).Msg("Stage reply for unknown order")
				return
			}
			if !applied {
				s.logger.Debug().Str("order_id", reply.OrderID).
					Str("stage", string(st)).Msg("Ignoring replayed stage reply")
				return
			}
			s.logger.Info().Str("order_id", reply.OrderID).
				Str("status", string(want)).Msg("Stage completed")
			if next != "" {
				s.dispatch(next, reply.OrderID)
			} else {
				s.finish(reply.OrderID)
			}

		case core.StatusFailed:
			s.recordFailure(st, reply)

		default:
			s.logger.Warn().Str("order_id", reply.OrderID).
				Str("stage", string(st)).Str("status", string(reply.Status)).
				Msg("Unexpected stage reply status")
		}
	}
}

func (s *TradeService) dispatch(st core.Stage, orderID string) {
	trade, ok := s.store.Get(orderID)
	if !ok {
		s.logger.Error().Str("order_id", orderID).Str("stage", string(st)).Msg("Cannot dispatch unknown order")
		return
	}
	s.markDispatch(orderID)
	if err := s.clients[st].Send(s.ctx, &trade); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Str("stage", string(st)).Msg("Failed to dispatch trade")
	}
}

// recordFailure applies a FAILED stage reply to the authoritative trade.
// Failure is terminal from any non-terminal state.
func (s *TradeService) recordFailure(st core.Stage, reply *core.Trade) {
	applied := false
	err := s.store.Update(reply.OrderID, func(t *core.Trade) {
		if t.Status.IsTerminal() {
			return
		}
		failedAt := reply.FailureStage
		if failedAt == "" {
			failedAt = st
		}
		t.Fail(failedAt, reply.FailureReason)
		switch st {
		case core.StageValidation:
			t.ValidationMessage = reply.ValidationMessage
		case core.StageClearing:
			t.ClearingMessage = reply.ClearingMessage
		case core.StageSettlement:
			t.SettlementMessage = reply.SettlementMessage
		}
		applied = true
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", reply.OrderID).
			Str("stage", string(st)).Msg("Failure reply for unknown order")
		return
	}
	if !applied {
		return
	}
	s.logger.Warn().Str("order_id", reply.OrderID).
		Str("stage", string(st)).Str("reason", reply.FailureReason).
		Msg("Trade failed")
	s.finish(reply.OrderID)
}

// finish records a terminal trade on the metrics and the outcome feed.
func (s *TradeService) finish(orderID string) {
	trade, ok := s.store.Get(orderID)
	if !ok {
		return
	}
	s.metrics.RecordTerminalTrade(s.ctx, string(trade.Status), string(trade.FailureStage))
	if s.feed == nil {
		return
	}
	if err := s.feed.SendTradeMessage(s.ctx, feed.NewTradeMessage(&trade)); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("Failed to publish trade outcome")
	}
}

// listen serves the orchestrator's own inbound channel: synchronous-client
// requests for submit and status.
func (s *TradeService) listen() {
	for msg := range s.sub.Messages() {
		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil {
			s.logger.Error().Err(err).Msg("Discarding undecodable request")
			continue
		}
		if env.ReturnChannel == "" {
			s.logger.Warn().Err(bus.ErrNoReturnChannel).Str("type", string(env.Type)).Msg("Dropping request")
			continue
		}

		switch env.Type {
		case bus.TypeOrderSubmit:
			order, err := env.Payload.Order()
			if err != nil {
				s.logger.Error().Err(err).Msg("Discarding malformed order submission")
				continue
			}
			orderID := s.SubmitOrder(s.ctx, order)
			s.reply(env, bus.OrderIDPayload(orderID))

		case bus.TypeOrderStatus:
			orderID, err := env.Payload.OrderID()
			if err != nil {
				s.logger.Error().Err(err).Msg("Discarding malformed status request")
				continue
			}
			s.reply(env, bus.StatusPayload(s.GetOrderStatus(orderID)))

		default:
			s.logger.Debug().Str("type", string(env.Type)).Msg("Discarding unexpected request type")
		}
	}
}

func (s *TradeService) reply(req *bus.Envelope, payload bus.Payload) {
	data, err := req.Reply(payload).Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode reply")
		return
	}
	if err := s.bus.Publish(s.ctx, req.ReturnChannel, data); err != nil {
		s.logger.Error().Err(err).Str("channel", req.ReturnChannel).Msg("Failed to publish reply")
	}
}

func (s *TradeService) markDispatch(orderID string) {
	s.inflight.Store(orderID, time.Now())
}

func (s *TradeService) observeLatency(st core.Stage, orderID string) {
	if v, ok := s.inflight.LoadAndDelete(orderID); ok {
		s.metrics.RecordStageLatency(s.ctx, string(st), time.Since(v.(time.Time)))
	}
}

func (s *TradeService) closeClients() {
	for _, c := range s.clients {
		_ = c.Close()
	}
}

// Close releases the inbound subscription and every stage client.
func (s *TradeService) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.sub != nil {
		_ = s.sub.Close()
	}
	s.closeClients()
	s.logger.Info().Msg("TradeService closed")
	return nil
}
