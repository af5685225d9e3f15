package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvera/tradeflow/pkg/bus"
	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/feed"
	"github.com/finvera/tradeflow/pkg/orchestrator"
	"github.com/finvera/tradeflow/pkg/pipeline"
	"github.com/finvera/tradeflow/pkg/stage"
)

// startService boots the full pipeline over an in-memory bus so the client
// talks to a live trade service.
func startService(t *testing.T, b *bus.MemBus) {
	t.Helper()
	ctx := context.Background()
	limits := pipeline.DefaultLimits()

	transforms := map[core.Stage]stage.Transform{
		core.StageValidation: pipeline.Validator(limits),
		core.StageExecution:  pipeline.Executor(),
		core.StageClearing:   pipeline.Clearer(limits),
		core.StageSettlement: pipeline.Settler(),
	}
	for _, st := range core.Stages {
		rt := stage.NewRuntime(string(st), transforms[st], b)
		require.NoError(t, rt.Start(ctx))
		t.Cleanup(func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = rt.Stop(stopCtx)
		})
	}

	service := orchestrator.NewTradeService("TRADE", b, orchestrator.NewTradeStore(nil), feed.NewMockSender())
	require.NoError(t, service.Start(ctx))
	t.Cleanup(func() { _ = service.Close() })
}

func TestSubmitAndQueryStatus(t *testing.T) {
	b := bus.NewMemBus()
	startService(t, b)
	ctx := context.Background()

	c, err := New(ctx, "TRADE", b, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	orderID, err := c.SubmitOrder(ctx, core.Order{
		ClientID:    "client-1",
		StockSymbol: "AAPL",
		Quantity:    100,
		Price:       150.0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	// The pipeline runs asynchronously; poll until it settles.
	deadline := time.Now().Add(5 * time.Second)
	var status core.OrderStatus
	for time.Now().Before(deadline) {
		status, err = c.GetOrderStatus(ctx, orderID)
		require.NoError(t, err)
		if status.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, core.StatusSettled, status)
}

func TestGetOrderStatusUnknownOrder(t *testing.T) {
	b := bus.NewMemBus()
	startService(t, b)
	ctx := context.Background()

	c, err := New(ctx, "TRADE", b, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	status, err := c.GetOrderStatus(ctx, "no-such-order")
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnknown, status)
}

func TestCallTimesOutWithoutService(t *testing.T) {
	// Nothing listens on the service channel, so the request vanishes and
	// the call must come back with ErrTimeout.
	b := bus.NewMemBus()
	ctx := context.Background()

	c, err := New(ctx, "TRADE", b, 100*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.SubmitOrder(ctx, core.Order{
		ClientID:    "client-1",
		StockSymbol: "AAPL",
		Quantity:    1,
		Price:       1,
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	_, err = c.GetOrderStatus(ctx, "order-1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	b := bus.NewMemBus()
	ctx, cancel := context.WithCancel(context.Background())

	c, err := New(ctx, "TRADE", b, 10*time.Second)
	require.NoError(t, err)
	defer c.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = c.GetOrderStatus(ctx, "order-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	b := bus.NewMemBus()
	startService(t, b)
	ctx := context.Background()

	c, err := New(ctx, "TRADE", b, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	const n = 10
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = c.SubmitOrder(ctx, core.Order{
				ClientID:    "client-1",
				StockSymbol: "GOOG",
				Quantity:    10,
				Price:       25.0,
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotEmpty(t, ids[i])
		assert.False(t, seen[ids[i]], "order id %s returned twice", ids[i])
		seen[ids[i]] = true
	}
}

func TestLateReplyDoesNotLeakIntoNextCall(t *testing.T) {
	b := bus.NewMemBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, bus.Inbound("TRADE"))
	require.NoError(t, err)
	defer sub.Close()

	// A responder that answers only the first request, and answers it well
	// after the caller has given up, while the caller's next request is
	// already waiting.
	go func() {
		msg, ok := <-sub.Messages()
		if !ok {
			return
		}
		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil || env.ReturnChannel == "" {
			return
		}
		time.Sleep(300 * time.Millisecond)
		data, err := env.Reply(bus.OrderIDPayload("stale-order")).Encode()
		if err != nil {
			return
		}
		_ = b.Publish(ctx, env.ReturnChannel, data)
	}()

	c, err := New(ctx, "TRADE", b, 200*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SubmitOrder(ctx, core.Order{
		ClientID:    "client-1",
		StockSymbol: "AAPL",
		Quantity:    1,
		Price:       1,
	})
	require.ErrorIs(t, err, ErrTimeout)

	// The stale submit reply lands while this status call is in flight. It
	// belongs to the first call's dead channel and must not become this
	// call's result.
	status, err := c.GetOrderStatus(ctx, "order-1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, core.StatusUnknown, status)
}

func TestDefaultTimeoutApplied(t *testing.T) {
	b := bus.NewMemBus()

	c, err := New(context.Background(), "TRADE", b, 0)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultTimeout, c.timeout)
}
