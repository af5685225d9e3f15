package pipeline

import (
	"time"

	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/stage"
)

// Executor returns the execution-stage transform. Execution is simulated:
// the trade fills at its limit price at the current time. Real logic would
// check liquidity on an exchange.
func Executor() stage.Transform {
	return func(t core.Trade) core.Trade {
		t.ExecutedPrice = t.Order.Price
		t.ExecutedTimestamp = time.Now().UnixMilli()
		t.Status = core.StatusExecuted
		return t
	}
}
