package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvera/tradeflow/pkg/core"
)

func tradeFor(quantity int64, price float64) core.Trade {
	return *core.NewTrade("order-1", core.Order{
		ClientID:    "client-1",
		StockSymbol: "AAPL",
		Quantity:    quantity,
		Price:       price,
	})
}

func TestValidatorAccepts(t *testing.T) {
	validate := Validator(DefaultLimits())

	got := validate(tradeFor(100, 150.0))

	assert.Equal(t, core.StatusValidated, got.Status)
	assert.Equal(t, "Account Validation Successful", got.ValidationMessage)
	assert.Empty(t, got.FailureStage)
}

func TestValidatorRejects(t *testing.T) {
	validate := Validator(DefaultLimits())

	tests := []struct {
		name     string
		quantity int64
		price    float64
	}{
		{"zero quantity", 0, 150.0},
		{"negative quantity", -10, 150.0},
		{"zero price", 100, 0},
		{"negative price", 100, -1},
		{"quantity over limit", 50_000, 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validate(tradeFor(tt.quantity, tt.price))

			assert.Equal(t, core.StatusFailed, got.Status)
			assert.Equal(t, core.StageValidation, got.FailureStage)
			assert.NotEmpty(t, got.FailureReason)
			assert.Contains(t, got.ValidationMessage, "Validation failed")
		})
	}
}

func TestValidatorQuantityAtLimit(t *testing.T) {
	validate := Validator(Limits{MaxOrderQuantity: 100, MaxNettedAmount: 1_000_000})

	got := validate(tradeFor(100, 10.0))
	assert.Equal(t, core.StatusValidated, got.Status)

	got = validate(tradeFor(101, 10.0))
	assert.Equal(t, core.StatusFailed, got.Status)
}

func TestExecutor(t *testing.T) {
	execute := Executor()
	in := tradeFor(100, 150.0)
	in.Status = core.StatusValidated

	got := execute(in)

	assert.Equal(t, core.StatusExecuted, got.Status)
	assert.Equal(t, 150.0, got.ExecutedPrice)
	assert.NotZero(t, got.ExecutedTimestamp)
}

func TestClearerNetting(t *testing.T) {
	clear := Clearer(DefaultLimits())

	tests := []struct {
		quantity   int64
		price      float64
		wantNetted float64
	}{
		{100, 150.0, 15_000.0},
		{50, 200.0, 10_000.0},
		{1, 0.01, 0.01},
	}

	for _, tt := range tests {
		in := tradeFor(tt.quantity, tt.price)
		in.ExecutedPrice = tt.price
		in.Status = core.StatusExecuted

		got := clear(in)

		require.Equal(t, core.StatusCleared, got.Status)
		assert.Equal(t, tt.wantNetted, got.NettedAmount)
		assert.Equal(t, "Clearing Successful", got.ClearingMessage)
	}
}

func TestClearerRiskLimit(t *testing.T) {
	clear := Clearer(DefaultLimits())

	// Exactly at the limit clears: 10000 * 100.00 = 1,000,000.
	in := tradeFor(10_000, 100.0)
	in.ExecutedPrice = 100.0
	got := clear(in)
	assert.Equal(t, core.StatusCleared, got.Status)
	assert.Equal(t, 1_000_000.0, got.NettedAmount)

	// One cent above fails.
	in = tradeFor(1, 1_000_000.01)
	in.ExecutedPrice = 1_000_000.01
	got = clear(in)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, core.StageClearing, got.FailureStage)
	assert.Contains(t, got.ClearingMessage, "risk limit")
	assert.Zero(t, got.NettedAmount)
}

func TestSettler(t *testing.T) {
	settle := Settler()
	in := tradeFor(100, 150.0)
	in.Status = core.StatusCleared

	got := settle(in)

	assert.Equal(t, core.StatusSettled, got.Status)
	assert.Equal(t, "Settlement Successful", got.SettlementMessage)
}

func TestLoadLimitsDefaults(t *testing.T) {
	limits, err := LoadLimits()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), limits.MaxOrderQuantity)
	assert.Equal(t, 1_000_000.0, limits.MaxNettedAmount)
}

func TestLoadLimitsFromEnv(t *testing.T) {
	t.Setenv("MAX_ORDER_QUANTITY", "500")
	t.Setenv("MAX_NETTED_AMOUNT", "2500.50")

	limits, err := LoadLimits()
	require.NoError(t, err)
	assert.Equal(t, int64(500), limits.MaxOrderQuantity)
	assert.Equal(t, 2500.50, limits.MaxNettedAmount)
}

func TestLoadLimitsRejectsNonPositive(t *testing.T) {
	t.Setenv("MAX_ORDER_QUANTITY", "-1")

	_, err := LoadLimits()
	assert.Error(t, err)
}
