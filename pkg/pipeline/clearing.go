package pipeline

import (
	"fmt"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/stage"
)

// Clearer returns the clearing-stage transform: netting with the central
// counterparty and the risk-limit check. The netted amount is quantity
// times executed price, computed in fixed point so the boundary case lands
// exactly on the limit.
func Clearer(limits Limits) stage.Transform {
	maxNetted := fpdecimal.FromFloat(limits.MaxNettedAmount)
	return func(t core.Trade) core.Trade {
		netted := fpdecimal.FromInt(t.Order.Quantity).Mul(fpdecimal.FromFloat(t.ExecutedPrice))

		if netted.GreaterThan(maxNetted) {
			t.Fail(core.StageClearing, fmt.Sprintf(
				"netted amount %s exceeds risk limit %s", netted.String(), maxNetted.String()))
			t.ClearingMessage = "Clearing failed: risk limit exceeded"
			return t
		}

		t.NettedAmount = netted.Float64()
		t.ClearingMessage = "Clearing Successful"
		t.Status = core.StatusCleared
		return t
	}
}
