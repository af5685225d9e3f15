package feed

import (
	"context"

	"github.com/finvera/tradeflow/pkg/core"
)

// Sender defines an interface for publishing terminal trade outcomes.
// This keeps the orchestrator decoupled from the Kafka implementation.
type Sender interface {
	SendTradeMessage(ctx context.Context, msg *TradeMessage) error
	Close() error
}

// TradeMessage is the feed record emitted once per trade when it reaches a
// terminal status (SETTLED or FAILED).
type TradeMessage struct {
	OrderID           string  `json:"orderId"`
	ClientID          string  `json:"clientId"`
	StockSymbol       string  `json:"stockSymbol"`
	Quantity          int64   `json:"quantity"`
	ExecutedPrice     float64 `json:"executedPrice"`
	ExecutedTimestamp int64   `json:"executedTimestamp"`
	NettedAmount      float64 `json:"nettedAmount"`
	Status            string  `json:"status"`
	FailureStage      string  `json:"failureStage,omitempty"`
	FailureReason     string  `json:"failureReason,omitempty"`
}

// NewTradeMessage builds the feed record for a terminal trade.
func NewTradeMessage(t *core.Trade) *TradeMessage {
	return &TradeMessage{
		OrderID:           t.OrderID,
		ClientID:          t.Order.ClientID,
		StockSymbol:       t.Order.StockSymbol,
		Quantity:          t.Order.Quantity,
		ExecutedPrice:     t.ExecutedPrice,
		ExecutedTimestamp: t.ExecutedTimestamp,
		NettedAmount:      t.NettedAmount,
		Status:            string(t.Status),
		FailureStage:      string(t.FailureStage),
		FailureReason:     t.FailureReason,
	}
}
