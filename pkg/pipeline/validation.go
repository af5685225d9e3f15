package pipeline

import (
	"fmt"

	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/stage"
)

// Validator returns the validation-stage transform: account margin and
// credit checks plus basic order sanity against the configured limits.
func Validator(limits Limits) stage.Transform {
	return func(t core.Trade) core.Trade {
		order := t.Order

		if order.Quantity <= 0 {
			t.Fail(core.StageValidation, fmt.Sprintf("invalid quantity %d", order.Quantity))
			t.ValidationMessage = "Validation failed: invalid quantity"
			return t
		}
		if order.Price <= 0 {
			t.Fail(core.StageValidation, fmt.Sprintf("invalid price %f", order.Price))
			t.ValidationMessage = "Validation failed: invalid price"
			return t
		}
		if order.Quantity > limits.MaxOrderQuantity {
			t.Fail(core.StageValidation, fmt.Sprintf(
				"order quantity %d exceeds max %d", order.Quantity, limits.MaxOrderQuantity))
			t.ValidationMessage = "Validation failed: quantity limit exceeded"
			return t
		}
		if !checkMargin(order) || !checkCreditLimits(order) {
			t.Fail(core.StageValidation, "insufficient margin or credit")
			t.ValidationMessage = "Validation failed: account checks"
			return t
		}

		t.ValidationMessage = "Account Validation Successful"
		t.Status = core.StatusValidated
		return t
	}
}

// checkMargin simulates the account margin check.
func checkMargin(core.Order) bool {
	return true
}

// checkCreditLimits simulates the account credit-limit check.
func checkCreditLimits(core.Order) bool {
	return true
}
