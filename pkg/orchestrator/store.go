package orchestrator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/finvera/tradeflow/pkg/core"
)

// TradeStore is the authoritative order-id → Trade state store. It exposes
// only the three operations the orchestrator needs: insert-if-absent, get,
// and an atomic per-key update. Entries carry their own lock over a
// sync.Map, so updates to different orders never contend on a global lock.
// Entries are never evicted during the process lifetime.
type TradeStore struct {
	entries sync.Map // orderID -> *tradeEntry
	logger  *zap.Logger
}

type tradeEntry struct {
	mu    sync.Mutex
	trade *core.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore(logger *zap.Logger) *TradeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeStore{logger: logger}
}

// Insert stores a new trade. It returns core.ErrTradeExists if an entry for
// the order id is already present.
func (s *TradeStore) Insert(trade *core.Trade) error {
	entry := &tradeEntry{trade: trade.Clone()}
	if _, loaded := s.entries.LoadOrStore(trade.OrderID, entry); loaded {
		s.logger.Warn("duplicate trade insert",
			zap.String("orderID", trade.OrderID))
		return core.ErrTradeExists
	}
	return nil
}

// Get returns a copy of the trade for the order id, if present. Callers
// never see the authoritative instance, so reads cannot race updates.
func (s *TradeStore) Get(orderID string) (core.Trade, bool) {
	v, ok := s.entries.Load(orderID)
	if !ok {
		return core.Trade{}, false
	}
	entry := v.(*tradeEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return *entry.trade, true
}

// Update applies fn to the authoritative trade under the entry's lock. It
// returns core.ErrNonexistentTrade if the order id is unknown.
func (s *TradeStore) Update(orderID string, fn func(t *core.Trade)) error {
	v, ok := s.entries.Load(orderID)
	if !ok {
		s.logger.Error("update for unknown trade",
			zap.String("orderID", orderID))
		return core.ErrNonexistentTrade
	}
	entry := v.(*tradeEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(entry.trade)
	return nil
}

// Len reports the number of stored trades.
func (s *TradeStore) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
