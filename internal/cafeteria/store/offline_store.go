package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

// CacheEntry is the last value this terminal believes is on (or should be
// on) the physical card. Refreshed on every successful physical read or
// write; read as a fallback when the medium is unavailable.
type CacheEntry struct {
	CardUID  string
	Balance  decimal.Decimal
	Identity string
	LastSync time.Time
	Checksum string
}

// PendingOperation is one row of the pending log. Two origins share it:
// mutations taken while fully offline (the ledger has never seen them,
// LedgerApplied false) and mutations whose ledger change committed but whose
// physical-card write could not be confirmed (LedgerApplied true). The sync
// engine replays only the former into the ledger; the latter are markers of
// an out-of-date card and must never be applied a second time. Consumed
// (marked synced) by the sync engine; rows are retained for audit, never
// deleted.
type PendingOperation struct {
	LocalID       string
	CardUID       string
	Type          types.TransactionType
	Amount        decimal.Decimal
	LedgerApplied bool
	CreatedAt     time.Time
	Synced        bool
	SyncedAt      *time.Time
	SyncError     string
}

// OfflineStore is the terminal-local durable mirror plus pending-operation
// queue, usable with neither the ledger nor the reader reachable.
//
// The cache is last-write-wins — acceptable for a local single-writer
// terminal. Implementations serialize appends and cache writes so a shared
// instance is still safe.
type OfflineStore interface {
	CacheRead(ctx context.Context, uid string) (CacheEntry, bool, error)
	CacheWrite(ctx context.Context, uid string, balance decimal.Decimal, identity string) error

	// EnqueuePending appends to the pending log; the row is durable before
	// the id is returned, so a crash after enqueue never loses the intent.
	// ledgerApplied records whether the ledger already holds this mutation.
	EnqueuePending(ctx context.Context, uid string, op types.TransactionType, amount decimal.Decimal, ledgerApplied bool) (string, error)

	// ListPending returns unsynced operations oldest first — append order,
	// which preserves intended application order.
	ListPending(ctx context.Context) ([]PendingOperation, error)

	// MarkSynced is idempotent; marking an already-synced id is a no-op.
	MarkSynced(ctx context.Context, localID string) error

	// MarkSyncError records a per-item failure; the row stays pending.
	MarkSyncError(ctx context.Context, localID string, msg string) error
}
