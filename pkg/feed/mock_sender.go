package feed

import (
	"context"
	"sync"
)

// MockSender is an in-memory Sender for testing. It records every message
// it is given.
type MockSender struct {
	mu       sync.Mutex
	messages []*TradeMessage
}

// NewMockSender creates a new MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendTradeMessage records the message.
func (m *MockSender) SendTradeMessage(_ context.Context, msg *TradeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (m *MockSender) Messages() []*TradeMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TradeMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Close does nothing.
func (m *MockSender) Close() error {
	return nil
}

// Ensure MockSender implements Sender
var _ Sender = (*MockSender)(nil)
