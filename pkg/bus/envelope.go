package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finvera/tradeflow/pkg/core"
)

// MessageType discriminates envelopes on the bus
type MessageType string

// Envelope types
const (
	TypeSend        MessageType = "SEND"
	TypeOnReceive   MessageType = "ON_RECEIVE"
	TypeOrderSubmit MessageType = "ORDER_SUBMIT"
	TypeOrderStatus MessageType = "ORDER_STATUS"
	TypeUnknown     MessageType = "UNKNOWN"
)

// Errors
var (
	ErrEmptyPayload    = errors.New("empty payload")
	ErrPayloadShape    = errors.New("unexpected payload shape")
	ErrNoReturnChannel = errors.New("missing return channel")
)

// Envelope is the correlation-bearing wrapper for every message exchanged
// over the bus. Field names are fixed for interop; the payload is carried
// as the raw nested JSON document so the envelope shape never changes.
type Envelope struct {
	Type          MessageType `json:"type"`
	ReturnChannel string      `json:"returnChannel"`
	Payload       Payload     `json:"payload"`
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses a wire message. Unrecognized types decode to
// TypeUnknown rather than failing, so a consumer can discard them.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	switch e.Type {
	case TypeSend, TypeOnReceive, TypeOrderSubmit, TypeOrderStatus:
	default:
		e.Type = TypeUnknown
	}
	return &e, nil
}

// Reply returns the response envelope for a request: the type is echoed so
// the caller can match the reply to its request kind, and the return
// channel is cleared because the reply terminates the correlation.
func (e *Envelope) Reply(p Payload) *Envelope {
	return &Envelope{Type: e.Type, ReturnChannel: "", Payload: p}
}

// Payload is a closed variant over the four payload kinds the protocol
// carries: an Order, a Trade, an order identifier, or a status. On the wire
// it is the nested document itself; the kind is an expectation checked by
// the typed accessor at the consuming boundary.
type Payload struct {
	raw json.RawMessage
}

// MarshalJSON emits the nested document verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

// UnmarshalJSON captures the nested document verbatim.
func (p *Payload) UnmarshalJSON(data []byte) error {
	p.raw = append(p.raw[:0], data...)
	return nil
}

// TradePayload wraps a trade as an envelope payload.
func TradePayload(t *core.Trade) (Payload, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal trade payload: %w", err)
	}
	return Payload{raw: raw}, nil
}

// OrderPayload wraps an order as an envelope payload.
func OrderPayload(o core.Order) (Payload, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal order payload: %w", err)
	}
	return Payload{raw: raw}, nil
}

// OrderIDPayload wraps an order identifier as an envelope payload.
func OrderIDPayload(orderID string) Payload {
	raw, _ := json.Marshal(orderID)
	return Payload{raw: raw}
}

// StatusPayload wraps an order status as an envelope payload.
func StatusPayload(s core.OrderStatus) Payload {
	raw, _ := json.Marshal(string(s))
	return Payload{raw: raw}
}

// Trade decodes the payload as a Trade, validating that it carries an
// order identifier and status.
func (p Payload) Trade() (*core.Trade, error) {
	if len(p.raw) == 0 {
		return nil, ErrEmptyPayload
	}
	var t core.Trade
	if err := json.Unmarshal(p.raw, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade payload: %w", err)
	}
	if t.OrderID == "" {
		return nil, fmt.Errorf("%w: trade without orderId", ErrPayloadShape)
	}
	if t.Status == "" {
		t.Status = core.StatusUnknown
	}
	return &t, nil
}

// Order decodes the payload as an Order.
func (p Payload) Order() (core.Order, error) {
	if len(p.raw) == 0 {
		return core.Order{}, ErrEmptyPayload
	}
	var o core.Order
	if err := json.Unmarshal(p.raw, &o); err != nil {
		return core.Order{}, fmt.Errorf("failed to unmarshal order payload: %w", err)
	}
	return o, nil
}

// OrderID decodes the payload as an order identifier string.
func (p Payload) OrderID() (string, error) {
	if len(p.raw) == 0 {
		return "", ErrEmptyPayload
	}
	var id string
	if err := json.Unmarshal(p.raw, &id); err != nil {
		return "", fmt.Errorf("failed to unmarshal order id payload: %w", err)
	}
	return id, nil
}

// Status decodes the payload as an order status.
func (p Payload) Status() (core.OrderStatus, error) {
	if len(p.raw) == 0 {
		return core.StatusUnknown, ErrEmptyPayload
	}
	var s string
	if err := json.Unmarshal(p.raw, &s); err != nil {
		return core.StatusUnknown, fmt.Errorf("failed to unmarshal status payload: %w", err)
	}
	return core.ParseOrderStatus(s), nil
}
