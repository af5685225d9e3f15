package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
)

func newTrade(orderID string) *core.Trade {
	return core.NewTrade(orderID, core.Order{
		ClientID:    "client-1",
		StockSymbol: "AAPL",
		Quantity:    100,
		Price:       150.0,
	})
}

func sendRequest(t *testing.T, b bus.Bus, name, replyChannel string, trade *core.Trade) {
	t.Helper()
	payload, err := bus.TradePayload(trade)
	require.NoError(t, err)
	env := &bus.Envelope{Type: bus.TypeSend, ReturnChannel: replyChannel, Payload: payload}
	data, err := env.Encode()
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), bus.Inbound(name), data))
}

func awaitReply(t *testing.T, sub bus.Subscription) *core.Trade {
	t.Helper()
	select {
	case msg := <-sub.Messages():
		env, err := bus.DecodeEnvelope(msg.Payload)
		require.NoError(t, err)
		require.Equal(t, bus.TypeOnReceive, env.Type)
		trade, err := env.Payload.Trade()
		require.NoError(t, err)
		return trade
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stage reply")
		return nil
	}
}

func TestRuntimeProcessesTrade(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	rt := NewRuntime("VALIDATION", func(tr core.Trade) core.Trade {
		tr.Status = core.StatusValidated
		tr.ValidationMessage = "ok"
		return tr
	}, b)
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop(ctx)

	replyChannel := bus.ReplyChannel("VALIDATION")
	sub, err := b.Subscribe(ctx, replyChannel)
	require.NoError(t, err)
	defer sub.Close()

	sendRequest(t, b, "VALIDATION", replyChannel, newTrade("order-1"))

	got := awaitReply(t, sub)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, core.StatusValidated, got.Status)
	assert.Equal(t, "ok", got.ValidationMessage)
}

func TestRuntimePreservesOrder(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	rt := NewRuntime("EXECUTION", func(tr core.Trade) core.Trade {
		tr.Status = core.StatusExecuted
		return tr
	}, b)
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop(ctx)

	replyChannel := bus.ReplyChannel("EXECUTION")
	sub, err := b.Subscribe(ctx, replyChannel)
	require.NoError(t, err)
	defer sub.Close()

	ids := []string{"order-1", "order-2", "order-3", "order-4", "order-5"}
	for _, id := range ids {
		sendRequest(t, b, "EXECUTION", replyChannel, newTrade(id))
	}

	// Single consumer, so replies come back in submission order.
	for _, want := range ids {
		got := awaitReply(t, sub)
		assert.Equal(t, want, got.OrderID)
	}
}

func TestRuntimeDiscardsNonSend(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	rt := NewRuntime("CLEARING", func(tr core.Trade) core.Trade {
		tr.Status = core.StatusCleared
		return tr
	}, b)
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop(ctx)

	replyChannel := bus.ReplyChannel("CLEARING")
	sub, err := b.Subscribe(ctx, replyChannel)
	require.NoError(t, err)
	defer sub.Close()

	// An ON_RECEIVE on the inbound channel must be ignored.
	payload, err := bus.TradePayload(newTrade("order-bad"))
	require.NoError(t, err)
	bogus := &bus.Envelope{Type: bus.TypeOnReceive, ReturnChannel: replyChannel, Payload: payload}
	data, err := bogus.Encode()
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.Inbound("CLEARING"), data))

	// A valid SEND afterwards still gets processed.
	sendRequest(t, b, "CLEARING", replyChannel, newTrade("order-good"))

	got := awaitReply(t, sub)
	assert.Equal(t, "order-good", got.OrderID)
}

func TestRuntimeDropsRequestWithoutReturnChannel(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	calls := make(chan string, 1)
	rt := NewRuntime("SETTLEMENT", func(tr core.Trade) core.Trade {
		calls <- tr.OrderID
		return tr
	}, b)
	require.NoError(t, rt.Start(ctx))
	defer rt.Stop(ctx)

	sendRequest(t, b, "SETTLEMENT", "", newTrade("order-1"))

	select {
	case id := <-calls:
		t.Fatalf("transform invoked for %s despite missing return channel", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRuntimeStop(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	rt := NewRuntime("VALIDATION", func(tr core.Trade) core.Trade { return tr }, b)
	require.NoError(t, rt.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, rt.Stop(stopCtx))
}
