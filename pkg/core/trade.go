package core

// Trade is the mutable lifecycle record for one order as it moves through
// the pipeline. Each stage receives its own deserialized copy, mutates it
// and returns it; the orchestrator reconciles the copy into its
// authoritative instance.
type Trade struct {
	OrderID           string      `json:"orderId"`
	Order             Order       `json:"order"`
	ExecutedPrice     float64     `json:"executedPrice"`
	ExecutedTimestamp int64       `json:"executedTimestamp"`
	NettedAmount      float64     `json:"nettedAmount"`
	Status            OrderStatus `json:"status"`
	ValidationMessage string      `json:"validationMessage"`
	ClearingMessage   string      `json:"clearingMessage"`
	SettlementMessage string      `json:"settlementMessage"`
	FailureStage      Stage       `json:"failureStage,omitempty"`
	FailureReason     string      `json:"failureReason,omitempty"`
}

// NewTrade creates the lifecycle record for a freshly submitted order.
func NewTrade(orderID string, order Order) *Trade {
	return &Trade{
		OrderID: orderID,
		Order:   order,
		Status:  StatusUnknown,
	}
}

// Fail marks the trade as terminally failed at the given stage.
func (t *Trade) Fail(stage Stage, reason string) {
	t.Status = StatusFailed
	t.FailureStage = stage
	t.FailureReason = reason
}

// Clone returns a deep copy of the trade. Order is a value type, so a
// shallow copy is sufficient.
func (t *Trade) Clone() *Trade {
	c := *t
	return &c
}
