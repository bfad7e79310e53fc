package review

import (
	"sync"

	"github.com/ggonzalez94/swapflow/internal/trade"
)

// TradeSelector holds the confirmation dialog's trade snapshot. The snapshot
// is set only when the user opens the dialog and is refreshed on every quote
// update while the dialog stays open, so the dialog never shows a trade
// older than its opening and never shows one the user did not ask to review.
type TradeSelector struct {
	mu     sync.Mutex
	active *trade.Trade
}

// Refresh replaces the snapshot with the latest live trade, but only while a
// snapshot is held. With no dialog open it is a no-op.
func (s *TradeSelector) Refresh(live *trade.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && live != nil {
		s.active = live
	}
}

// Open pins the current live trade as the dialog snapshot.
func (s *TradeSelector) Open(live *trade.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = live
}

// Close drops the snapshot. Runs on explicit dialog close and after every
// swap attempt, success or failure.
func (s *TradeSelector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// Active returns the held snapshot, ok=false when no dialog is open.
func (s *TradeSelector) Active() (*trade.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}
