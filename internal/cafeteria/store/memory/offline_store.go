package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cardcodec"
)

// OfflineStore is the in-memory variant of the terminal-local cache plus
// pending-operation queue.
type OfflineStore struct {
	mu      sync.Mutex
	cache   map[string]store.CacheEntry
	pending []store.PendingOperation
}

func NewOfflineStore() *OfflineStore {
	return &OfflineStore{cache: make(map[string]store.CacheEntry)}
}

func (s *OfflineStore) CacheRead(_ context.Context, uid string) (store.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[uid]
	return entry, ok, nil
}

func (s *OfflineStore) CacheWrite(_ context.Context, uid string, balance decimal.Decimal, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[uid] = store.CacheEntry{
		CardUID:  uid,
		Balance:  balance,
		Identity: identity,
		Checksum: cardcodec.Checksum(balance, identity),
		LastSync: time.Now().UTC(),
	}
	return nil
}

func (s *OfflineStore) EnqueuePending(_ context.Context, uid string, op types.TransactionType, amount decimal.Decimal, ledgerApplied bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID := uuid.NewString()
	s.pending = append(s.pending, store.PendingOperation{
		LocalID:       localID,
		CardUID:       uid,
		Type:          op,
		Amount:        amount,
		LedgerApplied: ledgerApplied,
		CreatedAt:     time.Now().UTC(),
	})
	return localID, nil
}

func (s *OfflineStore) ListPending(_ context.Context) ([]store.PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.PendingOperation
	for _, p := range s.pending {
		if !p.Synced {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *OfflineStore) MarkSynced(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].LocalID == localID && !s.pending[i].Synced {
			now := time.Now().UTC()
			s.pending[i].Synced = true
			s.pending[i].SyncedAt = &now
			s.pending[i].SyncError = ""
		}
	}
	return nil
}

func (s *OfflineStore) MarkSyncError(_ context.Context, localID string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].LocalID == localID && !s.pending[i].Synced {
			s.pending[i].SyncError = msg
		}
	}
	return nil
}

// AllPending returns every queued operation, synced or not.  Test-only helper.
func (s *OfflineStore) AllPending() []store.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PendingOperation, len(s.pending))
	copy(out, s.pending)
	return out
}
