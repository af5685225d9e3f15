package pipeline

import (
	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/stage"
)

// Settler returns the settlement-stage transform: bookkeeping with the
// central securities depository is simulated as always succeeding.
func Settler() stage.Transform {
	return func(t core.Trade) core.Trade {
		t.SettlementMessage = "Settlement Successful"
		t.Status = core.StatusSettled
		return t
	}
}
